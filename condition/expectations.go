package condition

import "github.com/pithecene-io/torture/types"

// CompileFacts are the facts known before a compile attempt.
type CompileFacts struct {
	OptLevel types.OptLevel
	Platform types.Platform
}

// RunFacts are the facts known before a run, after the compiler
// variant has been detected.
type RunFacts struct {
	OptLevel        types.OptLevel
	Platform        types.Platform
	CompilerVariant types.CompilerVariant
}

// CompileFailsIf matches compile configurations in which failure is expected.
type CompileFailsIf struct {
	OptLevel OneOf[types.OptLevel] `json:"opt-level,omitzero"`
	Platform OneOf[types.Platform] `json:"platform,omitzero"`
}

// Holds implements Condition.
func (c CompileFailsIf) Holds(f CompileFacts) bool {
	return c.OptLevel.Admits(f.OptLevel) && c.Platform.Admits(f.Platform)
}

// RunFailsIf matches run configurations in which failure is expected.
type RunFailsIf struct {
	OptLevel        OneOf[types.OptLevel]        `json:"opt-level,omitzero"`
	Platform        OneOf[types.Platform]        `json:"platform,omitzero"`
	CompilerVariant OneOf[types.CompilerVariant] `json:"compiler-variant,omitzero"`
}

// Holds implements Condition.
func (c RunFailsIf) Holds(f RunFacts) bool {
	return c.OptLevel.Admits(f.OptLevel) &&
		c.Platform.Admits(f.Platform) &&
		c.CompilerVariant.Admits(f.CompilerVariant)
}

// CompileTree is a tree of compile-time expectations.
type CompileTree = Tree[CompileFailsIf]

// RunTree is a tree of run-time expectations.
type RunTree = Tree[RunFailsIf]
