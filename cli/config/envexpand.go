// Package config handles torture.yaml loading and the effective harness
// configuration.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config document.
// A variable that is unset or empty takes its fallback, or expands to
// nothing when there is none.
func ExpandEnv(doc string) string {
	matches := envRef.FindAllStringSubmatchIndex(doc, -1)
	if len(matches) == 0 {
		return doc
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(doc[last:m[0]])
		name := doc[m[2]:m[3]]
		if v := os.Getenv(name); v != "" {
			b.WriteString(v)
		} else if m[4] >= 0 {
			b.WriteString(doc[m[4]:m[5]])
		}
		last = m[1]
	}
	b.WriteString(doc[last:])
	return b.String()
}
