// Generic data manipulation utilities.

package main

import (
	"strconv"
	"strings"
)

// Parses semantic version in the format "1.2" or "1.2.3" into a numeric
// value: ((major & 0xff) << 8) | (minor & 0xff). The patch value is ignored.
func parseVersion(vers string) int {
	var major, minor int
	var err error

	parts := strings.SplitN(vers, ".", 3)
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0
	}
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			return 0
		}
	}
	if major < 0 || major >= 0xff || minor < 0 || minor >= 0xff {
		return 0
	}

	return (major << 8) | minor
}

func versionToString(vers int) string {
	return strconv.Itoa(vers>>8) + "." + strconv.Itoa(vers&0xff)
}

// Returns > 0 if v1 > v2; zero if equal; < 0 if v1 < v2.
func versionCompare(v1, v2 int) int {
	return v1 - v2
}
