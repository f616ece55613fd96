package sim

import (
	"strings"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/oracle"
)

// Effect is the registry mutation derived from one decision.
type Effect struct {
	Kind    oracle.ActionKind
	Place   agent.Place // destination, for move
	Text    string      // content, for post/write_diary/create
	Thought string      // interior monologue to keep as the current thought
	Tick    int
}

// ActionRecord is the trace of one applied decision. The reward rules scan
// the previous tick's records, and the chronicler reads them for its digest.
type ActionRecord struct {
	AgentID       string            `json:"agent_id"`
	AgentName     string            `json:"agent_name"`
	Kind          oracle.ActionKind `json:"kind"`
	Detail        string            `json:"detail,omitempty"`
	MoralCategory string            `json:"moral_category,omitempty"`
	Nuance        string            `json:"nuance,omitempty"`
	Tick          int               `json:"tick"`
}

// snippet shortens free text for memories and feed payloads.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > 80 {
		return string(runes[:77]) + "..."
	}
	return s
}
