package build

import "fmt"

// Set at link time, e.g.
// go build -ldflags "-X github.com/rohmanhakim/threadwatch/internal/build.Version=1.2.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// Summary is the verbose form printed by `threadwatch version --verbose`.
func Summary() string {
	return fmt.Sprintf("threadwatch %s (built %s)", FullVersion(), BuildTime)
}

// UserAgent is the default User-Agent sent with listing and search requests.
func UserAgent() string {
	return "threadwatch/" + Version
}
