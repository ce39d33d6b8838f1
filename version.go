package swapd

import "fmt"

// Commit stores the current commit hash of this build, this should be set
// using the -ldflags during compilation.
var Commit string

// These constants define the application version and follow the semantic
// versioning 2.0.0 spec (http://semver.org/).
const (
	appMajor uint = 0
	appMinor uint = 2
	appPatch uint = 0

	appPreRelease = "alpha"
)

// Version returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec (http://semver.org/).
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	if Commit != "" {
		version = fmt.Sprintf("%s commit=%s", version, Commit)
	}

	return version
}
