package main

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	// Case format: input, expected numeric version.
	cases := []struct {
		vers     string
		expected int
	}{
		{"0.1", 1},
		{"1.2", 0x0102},
		{"1.2.3", 0x0102},
		{"12.255", 0},
		{"12.254", 0x0CFE},
		{"0.0", 0},
		{"", 0},
		{"1", 0x0100},
		{"abc", 0},
		{"1.x", 0},
		{"-1.2", 0},
	}

	for _, tc := range cases {
		if got := parseVersion(tc.vers); got != tc.expected {
			t.Errorf("parseVersion(%q): expected 0x%04X, got 0x%04X", tc.vers, tc.expected, got)
		}
	}
}

func TestVersionToString(t *testing.T) {
	cases := []struct {
		vers     int
		expected string
	}{
		{1, "0.1"},
		{0x0102, "1.2"},
		{0x0CFE, "12.254"},
	}

	for _, tc := range cases {
		if got := versionToString(tc.vers); got != tc.expected {
			t.Errorf("versionToString(0x%04X): expected %q, got %q", tc.vers, tc.expected, got)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	if versionCompare(parseVersion("0.1"), parseVersion("0.2")) >= 0 {
		t.Error("0.1 must compare lower than 0.2")
	}
	if versionCompare(parseVersion("1.0"), parseVersion("0.99")) <= 0 {
		t.Error("1.0 must compare higher than 0.99")
	}
	if versionCompare(parseVersion("1.2"), parseVersion("1.2.3")) != 0 {
		t.Error("patch version must be ignored in comparison")
	}
}
