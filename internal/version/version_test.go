package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		contains []string
		warning  bool
	}{
		{
			name:     "release",
			info:     Info{Version: "1.2.0", BuildTime: "2025-03-01", GoVersion: "go1.25", Commit: "0123456789abcdef"},
			contains: []string{"findash 1.2.0", "commit 01234567", "built 2025-03-01", "go1.25"},
		},
		{
			name:     "dirty tree",
			info:     Info{Version: "1.2.0", BuildTime: "unknown", Commit: "abc", Dirty: true},
			contains: []string{"commit abc+dirty"},
			warning:  true,
		},
		{
			name:     "dev build",
			info:     Info{Version: "dev", BuildTime: "unknown"},
			contains: []string{"findash dev"},
			warning:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.info.String()
			for _, want := range tt.contains {
				if !strings.Contains(s, want) {
					t.Errorf("String() = %q, missing %q", s, want)
				}
			}
			if got := tt.info.Warning() != ""; got != tt.warning {
				t.Errorf("Warning() = %q", tt.info.Warning())
			}
		})
	}
}

func TestGetDefaults(t *testing.T) {
	info := Get()
	if info.Version != Version || info.BuildTime != BuildTime {
		t.Errorf("Get() = %+v", info)
	}
}
