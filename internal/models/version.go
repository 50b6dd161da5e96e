package models

import (
	"strings"

	"golang.org/x/mod/semver"
)

// IsVersion reports whether s is a full semantic version (MAJOR.MINOR.PATCH
// with optional pre-release and build metadata) without a leading "v".
func IsVersion(s string) bool {
	if strings.HasPrefix(s, "v") {
		return false
	}
	v := "v" + s
	if !semver.IsValid(v) {
		return false
	}
	// Reject shorthands like "1" or "1.2", which semver accepts.
	core := strings.TrimSuffix(v, semver.Build(v))
	return semver.Canonical(v) == core
}

// CompareVersions orders two versions by semver precedence.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// IsPrerelease reports whether version carries a pre-release suffix.
func IsPrerelease(version string) bool {
	return semver.Prerelease("v"+version) != ""
}

// VersionRange returns the compatibility range a version belongs to:
// "MAJOR" from 1.0.0 onward, "0.MINOR" for 0.x releases and "0.0.PATCH"
// below 0.1.0.
func VersionRange(version string) string {
	v := "v" + version
	major, minor, _ := strings.Cut(strings.TrimPrefix(semver.MajorMinor(v), "v"), ".")
	if major != "0" {
		return major
	}
	if minor != "0" {
		return "0." + minor
	}
	patch := strings.TrimPrefix(semver.Canonical(v), "v0.0.")
	if i := strings.IndexAny(patch, "-+"); i >= 0 {
		patch = patch[:i]
	}
	return "0.0." + patch
}
