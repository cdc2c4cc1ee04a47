// Package executor provides the embedded runtime harness.
//
// The harness is a CommonJS module loaded by every generated entry script.
// It initialises the compiled program with the suite's flags and asserts
// that the program's outgoing port traffic matches the suite's expected
// port events. It is embedded at build time so the torture binary is
// self-contained.
package executor

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HarnessFile is the file name the harness is written under.
const HarnessFile = "harness.js"

//go:embed bundle/harness.js
var embeddedHarness []byte

// Harness returns a copy of the embedded harness source.
func Harness() []byte {
	return append([]byte(nil), embeddedHarness...)
}

// EmbeddedSize returns the size of the embedded harness in bytes.
func EmbeddedSize() int {
	return len(embeddedHarness)
}

// EmbeddedChecksum returns the SHA256 checksum of the embedded harness.
func EmbeddedChecksum() string {
	hash := sha256.Sum256(embeddedHarness)
	return hex.EncodeToString(hash[:])
}

// EntryScript returns the source of a generated entry script that loads
// the harness, the compiled artifact and the expected output, all by
// paths relative to the output directory.
func EntryScript(artifact, expectation string) string {
	var b strings.Builder
	b.WriteString("const harness = require('./" + HarnessFile + "');\n")
	fmt.Fprintf(&b, "const generated = require(%s);\n", jsString("./"+artifact))
	fmt.Fprintf(&b, "const expectedOutput = require(%s);\n", jsString("./"+expectation))
	b.WriteString("\nharness(generated, expectedOutput);\n")
	return b.String()
}

// jsString quotes s as a JavaScript string literal. Go's double-quoted
// escaping is a subset of what JavaScript accepts.
func jsString(s string) string {
	return strconv.Quote(s)
}
