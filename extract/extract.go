// Package extract derives caller-facing results from a finished run.
//
// Both lookups report absence through a boolean so that "not found" stays
// distinguishable from a found but empty value.
package extract

import (
	"regexp"
	"strings"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

// Tag returns the trimmed content of the first <name>...</name> element in
// text. The match is non-greedy and may span lines.
func Tag(text, name string) (string, bool) {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(name) + `>(.*?)</` + regexp.QuoteMeta(name) + `>`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// LatestArtifact scans turns in order and returns the last artifact written
// with the given identifier.
func LatestArtifact(turns []protocol.Turn, identifier string) (protocol.Artifact, bool) {
	var found protocol.Artifact
	ok := false
	for _, turn := range turns {
		for _, a := range turn.Artifacts {
			if a.Identifier == identifier {
				found, ok = a, true
			}
		}
	}
	return found, ok
}

// Artifact returns the data of the latest artifact with the given
// identifier. With a non-empty key it returns instead the value at key for
// every element of the data list; elements that are not objects or lack
// the key contribute nil.
func Artifact(turns []protocol.Turn, identifier, key string) (any, bool) {
	a, ok := LatestArtifact(turns, identifier)
	if !ok {
		return nil, false
	}
	if key == "" {
		return a.Data, true
	}

	items, _ := a.Data.([]any)
	values := make([]any, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		values = append(values, obj[key])
	}
	return values, true
}
