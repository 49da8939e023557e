package engine

import (
	"encoding/json"

	"github.com/anthropics/debate-arena/internal/domain"
)

// StatementPayload is the wire form of a finalized statement carried by
// StatementDone and AgentFailed events. It holds the full statement text so
// late subscribers can reconstruct the transcript from markers alone.
type StatementPayload struct {
	StatementID string `json:"statement_id"`
	AgentID     string `json:"agent_id"`
	RoundIndex  int    `json:"round_index"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
	Outcome     string `json:"outcome"`
	Cause       string `json:"cause,omitempty"`
}

type roundDonePayload struct {
	RoundIndex int `json:"round_index"`
	Failed     int `json:"failed"`
}

// DebateDonePayload is the wire form of the terminal DebateDone event.
type DebateDonePayload struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}

func statementPayload(s domain.Statement, cause string) StatementPayload {
	return StatementPayload{
		StatementID: s.ID,
		AgentID:     s.AgentID,
		RoundIndex:  s.RoundIndex,
		Text:        s.Text,
		TokenCount:  s.TokenCount,
		Outcome:     string(s.Outcome),
		Cause:       cause,
	}
}

// mustJSON marshals v to a JSON string, returning "{}" on error.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
