// Package version provides build version information for the application.
package version

// Version is the build version string, set by ldflags during build.
var Version = "v1.0.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// Full returns the version with build time, for banners and --version.
func Full() string {
	return Version + " (" + BuildTime + ")"
}
