package memory

import (
	"runtime/debug"
	"testing"
)

func TestConfigureFromEnv(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })

	tests := []struct {
		name       string
		env        map[string]string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{
			name:       "nothing set",
			wantSource: SourceNone,
		},
		{
			name:       "container limit with default ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000"},
			wantSource: SourceMemoryLimit,
			wantLimit:  800000000,
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "container limit with units",
			env:        map[string]string{"MEMORY_LIMIT": "1GiB", "MEMORY_RATIO": "0.5"},
			wantSource: SourceMemoryLimit,
			wantLimit:  512 * 1024 * 1024,
			wantRatio:  0.5,
		},
		{
			name:       "ratio out of range",
			env:        map[string]string{"MEMORY_LIMIT": "1000", "MEMORY_RATIO": "1.5"},
			wantSource: SourceMemoryLimit,
			wantLimit:  800,
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "invalid container limit",
			env:        map[string]string{"MEMORY_LIMIT": "lots"},
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", "")
			t.Setenv("MEMORY_RATIO", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			result := ConfigureFromEnv()
			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			if result.Configured != (tt.wantLimit > 0) {
				t.Errorf("Configured = %v", result.Configured)
			}
			if tt.wantLimit > 0 && debug.SetMemoryLimit(-1) != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", debug.SetMemoryLimit(-1), tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromEnv_GOMEMLIMITWins(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "400MiB")
	t.Setenv("MEMORY_LIMIT", "1000")

	result := ConfigureFromEnv()
	if result.Source != SourceGOMEMLIMIT {
		t.Errorf("Source = %q, want %q", result.Source, SourceGOMEMLIMIT)
	}
	if result.ContainerLimit != 0 {
		t.Errorf("ContainerLimit = %d, want 0", result.ContainerLimit)
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"6291456", 6291456, false},
		{"6MiB", 6 * 1024 * 1024, false},
		{"60 MiB", 60 * 1024 * 1024, false},
		{"1KB", 1000, false},
		{"", 0, true},
		{"six", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{6 * 1024 * 1024, "6.0 MiB"},
		{60 * 1024 * 1024, "60 MiB"},
		{-2048, "-2.0 KiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
