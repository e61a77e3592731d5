package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

// CheckCommandAllowed enforces --enable-commands. An empty allowlist permits
// every command.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

// CheckActionAllowed enforces --enable-actions for dispatched remediations.
// An empty allowlist permits every action kind.
func CheckActionAllowed(allowlist []string, kind string) error {
	if len(allowlist) == 0 {
		return nil
	}
	norm := normalize(kind)
	for _, allowed := range allowlist {
		if a := normalize(allowed); a == norm || a == "*" {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("action %s blocked by --enable-actions policy", norm))
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
