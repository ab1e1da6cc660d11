package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteJSON persists the trail under dir as audit_<session>.json and
// returns the written path.
func WriteJSON(t *Trail, dir string) (string, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: marshal trail: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("audit_%s.json", t.SessionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audit: write %s: %w", path, err)
	}
	return path, nil
}

// Mermaid renders the session as a Mermaid graph TD timeline: one node
// per round summarizing consultations and conflicts, validation edges
// between rounds, and a terminal outcome node.
func Mermaid(t *Trail) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("  S[\"session %.8s\"]\n", t.SessionID))

	prev := "S"
	edge := ""
	for _, r := range t.Rounds {
		id := fmt.Sprintf("R%d", r.Number)
		label := fmt.Sprintf("round %d: %d consulted", r.Number, len(r.Consultations))
		if n := len(r.Abstentions); n > 0 {
			label += fmt.Sprintf(", %d abstained", n)
		}
		if n := len(r.Conflicts); n > 0 {
			label += fmt.Sprintf(", %d conflicts", n)
		}
		sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", id, label))
		sb.WriteString(fmt.Sprintf("  %s -->%s %s\n", prev, edge, id))

		// A round's validation result labels the edge out of it.
		edge = ""
		if r.Report != nil {
			if v := len(r.Report.Violations()); v > 0 {
				edge = fmt.Sprintf("|%d violations|", v)
			} else {
				edge = "|valid|"
			}
		}
		prev = id
	}

	if t.Outcome != "" {
		sb.WriteString(fmt.Sprintf("  O[\"%s\"]\n", t.Outcome))
		sb.WriteString(fmt.Sprintf("  %s -->%s O\n", prev, edge))
	}

	return sb.String()
}
