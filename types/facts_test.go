package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestOptLevel_Flags(t *testing.T) {
	tests := []struct {
		level OptLevel
		want  []string
	}{
		{OptDebug, []string{"--debug"}},
		{OptDev, nil},
		{OptOptimize, []string{"--optimize"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.Flags(); !slices.Equal(got, tt.want) {
				t.Errorf("Flags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptLevel_UnmarshalJSON_RejectsUnknown(t *testing.T) {
	var o OptLevel
	if err := json.Unmarshal([]byte(`"fast"`), &o); err == nil {
		t.Fatal("expected error for unknown opt level")
	}
	if err := json.Unmarshal([]byte(`"optimize"`), &o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o != OptOptimize {
		t.Errorf("got %q, want optimize", o)
	}
}

func TestOptLevel_UnmarshalYAML(t *testing.T) {
	var levels []OptLevel
	if err := yaml.Unmarshal([]byte("[debug, dev]"), &levels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(levels, []OptLevel{OptDebug, OptDev}) {
		t.Errorf("got %v", levels)
	}
	if err := yaml.Unmarshal([]byte("[turbo]"), &levels); err == nil {
		t.Error("expected error for unknown opt level")
	}
}

func TestPlatformFor(t *testing.T) {
	tests := map[string]Platform{
		"linux":   PlatformLinux,
		"darwin":  PlatformMacOS,
		"windows": PlatformWindows,
		"plan9":   PlatformOther,
	}
	for goos, want := range tests {
		if got := PlatformFor(goos); got != want {
			t.Errorf("PlatformFor(%q) = %q, want %q", goos, got, want)
		}
	}
}

func TestParsePlatform_RejectsOther(t *testing.T) {
	if _, err := ParsePlatform("other"); err == nil {
		t.Error("descriptors must not be able to name the fallback platform")
	}
}

func TestCompilerVariant_UnmarshalJSON(t *testing.T) {
	var v CompilerVariant
	if err := json.Unmarshal([]byte(`"alternate"`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != VariantAlternate {
		t.Errorf("got %q", v)
	}
	if err := json.Unmarshal([]byte(`"lamdera"`), &v); err == nil {
		t.Error("expected error for unknown variant")
	}
}
