// Package version holds build metadata, overridden at link time via
// -ldflags "-X github.com/lowtide-labs/boatclient/version.Version=...".
package version

var (
	Name    = "boatclient"
	Version = "dev"
	Commit  = "unknown"
)
