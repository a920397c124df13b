// Package version reports the build version of the host and compares
// version strings exchanged during the native-messaging handshake.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time with -ldflags "-X".
//
//nolint:gochecknoglobals // Populated by the linker
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info describes the running build.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// Current returns the running build.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
}

// UserAgent is sent with every RPC request.
func UserAgent() string {
	return fmt.Sprintf("x1wallet/%s (%s/%s)", NormalizeVersion(Version), runtime.GOOS, runtime.GOARCH)
}

// CompareVersions returns 1 if v1 > v2, -1 if v1 < v2, and 0 when equal.
// Development builds and commit hashes sort before every release.
func CompareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	isV1Dev := v1 == "dev" || v1 == "" || isCommitHash(v1)
	isV2Dev := v2 == "dev" || v2 == "" || isCommitHash(v2)

	if isV1Dev && isV2Dev {
		return 0
	}
	if isV1Dev {
		return -1
	}
	if isV2Dev {
		return 1
	}

	parts1 := parseVersion(v1)
	parts2 := parseVersion(v2)
	for i := range 3 {
		val1, val2 := 0, 0
		if i < len(parts1) {
			val1 = parts1[i]
		}
		if i < len(parts2) {
			val2 = parts2[i]
		}
		if val1 > val2 {
			return 1
		}
		if val1 < val2 {
			return -1
		}
	}
	return 0
}

// Satisfies reports whether version meets minimum. A development build
// satisfies everything so local builds can talk to any extension.
func Satisfies(version, minimum string) bool {
	v := strings.TrimPrefix(version, "v")
	if v == "dev" || isCommitHash(v) {
		return true
	}
	return CompareVersions(version, minimum) >= 0
}

// parseVersion parses a version string into major, minor, patch integers.
func parseVersion(version string) []int {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		var num int
		if _, err := fmt.Sscanf(part, "%d", &num); err == nil {
			result = append(result, num)
		}
	}
	return result
}

// NormalizeVersion removes the v prefix, whitespace, and any pre-release or
// build suffix.
func NormalizeVersion(version string) string {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}
	for {
		trimmed := strings.TrimLeft(strings.TrimSpace(version), "v")
		if trimmed == version {
			break
		}
		version = trimmed
	}
	return version
}

// isCommitHash reports whether s looks like a 7 to 40 character hex commit
// with at least one letter.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	hasLetter := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
