// Package errors defines the stable error taxonomy surfaced by the
// transaction pipeline. Callers render Kind, never raw RPC strings.
package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	// KindUserRejected means the signer declined the request. Terminal,
	// never retried, no cache invalidation.
	KindUserRejected Kind = "user-rejected"

	// KindInsufficientAllowance is resolved by routing through the
	// allowance gate, not by retrying the original action.
	KindInsufficientAllowance Kind = "insufficient-allowance"

	// KindRevertCooldown through KindRevertNotOwner are on-chain reverts
	// with a known reason. Surfaced verbatim, never retried.
	KindRevertCooldown   Kind = "execution-reverted-cooldown-active"
	KindRevertAmount     Kind = "execution-reverted-amount-out-of-range"
	KindRevertPool       Kind = "execution-reverted-insufficient-pool"
	KindRevertNotOwner   Kind = "execution-reverted-not-owner"
	KindRevertUnknown    Kind = "execution-reverted"

	// KindEstimationFailed is absorbed internally by the fallback plan and
	// never reaches the caller.
	KindEstimationFailed Kind = "estimation-failed"

	// KindBudgetShortfall triggers exactly one submitter-level retry with a
	// widened gas budget.
	KindBudgetShortfall Kind = "budget-shortfall"

	// KindTransport covers network and subscription failures. Reads fall
	// back to stale cache; the event channel relies on the periodic sweep.
	KindTransport Kind = "transport-error"

	// KindAggregationUnavailable is absorbed by the leaderboard's synthetic
	// fallback dataset.
	KindAggregationUnavailable Kind = "aggregation-unavailable"

	// KindDuplicateAction means an action for the same (account, resource,
	// kind) tuple is already in flight.
	KindDuplicateAction Kind = "duplicate-action"

	KindInternal Kind = "internal"
)

// ActionError carries a stable kind plus the underlying cause.
type ActionError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *ActionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Cause
}

// New creates an ActionError.
func New(kind Kind, message string, cause error) *ActionError {
	return &ActionError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from an error chain, or KindInternal.
func KindOf(err error) Kind {
	for err != nil {
		if ae, ok := err.(*ActionError); ok {
			return ae.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindInternal
		}
		err = u.Unwrap()
	}
	return KindInternal
}

// IsRetryable reports whether the submitter may retry after this error.
// Only a budget shortfall qualifies; everything else is either terminal or
// recovered at a different layer.
func IsRetryable(err error) bool {
	return KindOf(err) == KindBudgetShortfall
}

// revertReasons maps substrings of known contract revert messages to kinds.
// The game contracts revert with short require strings; anything else maps
// to the generic revert kind.
var revertReasons = []struct {
	needle string
	kind   Kind
}{
	{"cooldown", KindRevertCooldown},
	{"stake out of range", KindRevertAmount},
	{"amount out of range", KindRevertAmount},
	{"pool", KindRevertPool},
	{"not owner", KindRevertNotOwner},
	{"not the owner", KindRevertNotOwner},
	{"allowance", KindInsufficientAllowance},
}

// ClassifyRevert maps a revert reason string to a stable kind.
func ClassifyRevert(reason string) Kind {
	lower := strings.ToLower(reason)
	for _, r := range revertReasons {
		if strings.Contains(lower, r.needle) {
			return r.kind
		}
	}
	return KindRevertUnknown
}

// budgetShortfallNeedles are the RPC error fragments that indicate the gas
// budget, not the call itself, was the problem.
var budgetShortfallNeedles = []string{
	"out of gas",
	"gas required exceeds allowance",
	"intrinsic gas too low",
	"gas limit reached",
	"exceeds block gas limit",
}

// IsBudgetShortfall reports whether an RPC submission error indicates an
// execution/compute-budget shortfall (as opposed to a revert or rejection).
func IsBudgetShortfall(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindBudgetShortfall {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, n := range budgetShortfallNeedles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// IsUserRejection reports whether the signer declined the request.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindUserRejected {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "user rejected") || strings.Contains(lower, "user denied")
}
