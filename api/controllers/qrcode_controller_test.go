package controllers

import "testing"

func TestParseSize(t *testing.T) {
	tests := map[string]int{
		"":        0,
		"200":     200,
		"150x150": 150,
		" 64 ":    64,
		"abc":     0,
		"-5":      0,
	}
	for in, want := range tests {
		if got := parseSize(in); got != want {
			t.Errorf("parseSize(%q) = %d, want %d", in, got, want)
		}
	}
}
