// Package version carries the build version, injected at link time.
package version

// value is overridden with -ldflags "-X .../internal/version.value=v1.2.3".
var value = "v0.0.0-dev"

// Value returns the build version string.
func Value() string {
	return value
}
