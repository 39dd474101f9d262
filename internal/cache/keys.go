package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	taskPrefix = "tasks"

	// GlobalScope is the scope segment for lists that span every organization.
	GlobalScope = "_global"
)

// ListKey derives the key of a task list result. The serialized request is
// digested so keys stay short while remaining deterministic for equal input.
func ListKey(scope string, request any) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("serialize cache key: %w", err)
	}
	sum := blake3.Sum256(raw)
	return taskPrefix + ":" + scope + ":" + hex.EncodeToString(sum[:]), nil
}

// ScopePattern matches every list key stored under scope.
func ScopePattern(scope string) string {
	return taskPrefix + ":" + escapeGlob(scope) + ":*"
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
