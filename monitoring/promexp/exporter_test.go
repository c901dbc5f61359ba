package main

import (
	"encoding/json"
	"testing"
)

func TestParseNumeric(t *testing.T) {
	var stats map[string]interface{}
	blob := `{
		"Version": 1,
		"LiveRooms": 42,
		"memstats": {"Alloc": 12345678, "Sys": {"Deep": 7}},
		"Hostname": "localhost"
	}`
	if err := json.Unmarshal([]byte(blob), &stats); err != nil {
		t.Fatal("failed to parse test data:", err)
	}

	cases := []struct {
		path     string
		expected float64
		ok       bool
	}{
		{"Version", 1, true},
		{"LiveRooms", 42, true},
		{"memstats.Alloc", 12345678, true},
		{"memstats.Sys.Deep", 7, true},
		{"Hostname", 0, false},
		{"NoSuchKey", 0, false},
		{"memstats.NoSuchKey", 0, false},
		{"Version.TooDeep", 0, false},
	}

	for _, tc := range cases {
		got, err := parseNumeric(stats, tc.path)
		if tc.ok && err != nil {
			t.Errorf("parseNumeric(%q): unexpected error %v", tc.path, err)
			continue
		}
		if !tc.ok && err == nil {
			t.Errorf("parseNumeric(%q): expected an error", tc.path)
			continue
		}
		if got != tc.expected {
			t.Errorf("parseNumeric(%q): expected %v, got %v", tc.path, tc.expected, got)
		}
	}
}

func TestFirstError(t *testing.T) {
	if firstError(nil, nil, nil) != nil {
		t.Error("all-nil input must produce nil")
	}
	if firstError(nil, errKeyNotFound, nil) != errKeyNotFound {
		t.Error("first non-nil error must be returned")
	}
}
