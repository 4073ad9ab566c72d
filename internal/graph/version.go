package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// knownVersions maps each supported Graph API version to the date Meta stops
// serving it.
var knownVersions = map[string]time.Time{
	"v24.0": time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	"v25.0": time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
}

const deprecationNoticeDays = 90

type VersionStatus struct {
	Version    string `json:"version"`
	Latest     string `json:"latest"`
	Deprecated bool   `json:"deprecated"`
	DaysLeft   int    `json:"days_left"`
}

// CheckVersion reports how close a version is to its deprecation date.
func CheckVersion(version string, now time.Time) (VersionStatus, error) {
	version = strings.TrimSpace(version)
	sunset, ok := knownVersions[version]
	if !ok {
		return VersionStatus{}, fmt.Errorf("unknown graph version %q", version)
	}
	now = now.UTC()
	return VersionStatus{
		Version:    version,
		Latest:     latestVersion(),
		Deprecated: !now.Before(sunset),
		DaysLeft:   int(sunset.Sub(now).Hours() / 24),
	}, nil
}

// Warning is empty while the version is comfortably supported.
func (s VersionStatus) Warning() string {
	switch {
	case s.Deprecated:
		return fmt.Sprintf("graph version %s is deprecated; upgrade to %s", s.Version, s.Latest)
	case s.DaysLeft <= deprecationNoticeDays:
		return fmt.Sprintf("graph version %s is deprecated in %d days", s.Version, s.DaysLeft)
	default:
		return ""
	}
}

func latestVersion() string {
	versions := make([]string, 0, len(knownVersions))
	for version := range knownVersions {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersion(versions[i], versions[j]) > 0
	})
	if len(versions) == 0 {
		return ""
	}
	return versions[0]
}

func compareVersion(left string, right string) int {
	leftMajor, leftMinor := parseVersion(left)
	rightMajor, rightMinor := parseVersion(right)
	switch {
	case leftMajor != rightMajor:
		return leftMajor - rightMajor
	default:
		return leftMinor - rightMinor
	}
}

func parseVersion(version string) (int, int) {
	major, minor, found := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	if !found {
		return 0, 0
	}
	majorNumber, _ := strconv.Atoi(major)
	minorNumber, _ := strconv.Atoi(minor)
	return majorNumber, minorNumber
}
