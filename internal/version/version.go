package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Provisioned by ldflags
var (
	version = "dev"
	commit  string
)

// Short returns the release version.
func Short() string {
	return version
}

// Commit returns the vcs revision the binary was built from, if known.
func Commit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return ""
}

// Full returns the version including commit hash, runtime os and arch.
func Full() string {
	if c := Commit(); c != "" {
		return fmt.Sprintf("%s (%s) %s/%s", Short(), c, runtime.GOOS, runtime.GOARCH)
	}
	return fmt.Sprintf("%s %s/%s", Short(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies plotwatch in outbound requests.
func UserAgent() string {
	return "plotwatch/" + Short()
}
