package build

// Set with -ldflags "-X github.com/rohmanhakim/krishield/internal/build.Version=..." at release time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion is Version with the commit appended as semver build metadata,
// e.g. "1.0.0+abc123". Unknown commits are left off.
func FullVersion() string {
	if Commit == "" || Commit == "none" {
		return Version
	}
	return Version + "+" + Commit
}

// UserAgent is sent with every outgoing request, e.g. "krishield/1.0.0".
func UserAgent() string {
	return "krishield/" + Version
}
