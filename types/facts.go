package types

import (
	"encoding/json"
	"fmt"
	goruntime "runtime"
)

// OptLevel is a compiler optimization level.
type OptLevel string

// Optimization levels accepted by the compiler.
const (
	OptDebug    OptLevel = "debug"
	OptDev      OptLevel = "dev"
	OptOptimize OptLevel = "optimize"
)

// OptLevels lists every optimization level in canonical order.
var OptLevels = []OptLevel{OptDebug, OptDev, OptOptimize}

// ParseOptLevel parses an optimization level name.
func ParseOptLevel(s string) (OptLevel, error) {
	switch OptLevel(s) {
	case OptDebug, OptDev, OptOptimize:
		return OptLevel(s), nil
	default:
		return "", fmt.Errorf("invalid opt level %q (must be debug, dev, or optimize)", s)
	}
}

// Flags returns the compiler arguments selecting this level.
func (o OptLevel) Flags() []string {
	switch o {
	case OptDebug:
		return []string{"--debug"}
	case OptOptimize:
		return []string{"--optimize"}
	default:
		return nil
	}
}

func (o OptLevel) String() string { return string(o) }

// UnmarshalJSON rejects unknown optimization levels.
func (o *OptLevel) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, o, ParseOptLevel)
}

// UnmarshalYAML rejects unknown optimization levels.
func (o *OptLevel) UnmarshalYAML(unmarshal func(any) error) error {
	return unmarshalYAMLEnum(unmarshal, o, ParseOptLevel)
}

// Platform is the host operating system family.
type Platform string

// Platforms a suite descriptor may name. PlatformOther is reported for
// any other host and never matches a descriptor value.
const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
	PlatformOther   Platform = "other"
)

// ParsePlatform parses a platform name.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformLinux, PlatformMacOS, PlatformWindows:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("invalid platform %q (must be linux, macos, or windows)", s)
	}
}

// PlatformFor maps a GOOS value to a Platform.
func PlatformFor(goos string) Platform {
	switch goos {
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	default:
		return PlatformOther
	}
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return PlatformFor(goruntime.GOOS)
}

func (p Platform) String() string { return string(p) }

// UnmarshalJSON rejects unknown platforms.
func (p *Platform) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, p, ParsePlatform)
}

// CompilerVariant identifies which family of compiler produced an artifact.
type CompilerVariant string

// Compiler variants.
const (
	VariantOfficial  CompilerVariant = "official"
	VariantAlternate CompilerVariant = "alternate"
)

// ParseCompilerVariant parses a compiler variant name.
func ParseCompilerVariant(s string) (CompilerVariant, error) {
	switch CompilerVariant(s) {
	case VariantOfficial, VariantAlternate:
		return CompilerVariant(s), nil
	default:
		return "", fmt.Errorf("invalid compiler variant %q (must be official or alternate)", s)
	}
}

func (v CompilerVariant) String() string { return string(v) }

// UnmarshalJSON rejects unknown variants.
func (v *CompilerVariant) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, v, ParseCompilerVariant)
}

func unmarshalEnum[T ~string](data []byte, dst *T, parse func(string) (T, error)) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parse(s)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func unmarshalYAMLEnum[T ~string](unmarshal func(any) error, dst *T, parse func(string) (T, error)) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := parse(s)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}
