// Package oracle defines the cognition contract between the simulation and
// the language model that thinks for the villagers. The simulation only ever
// sees typed requests and responses; prompt phrasing and model choice stay on
// this side of the boundary.
package oracle

import (
	"context"

	"github.com/ashgrove/embervale/internal/agent"
)

// ActionKind enumerates the actions a villager can take.
type ActionKind string

const (
	ActionMove              ActionKind = "move"
	ActionStartConversation ActionKind = "start_conversation"
	ActionPost              ActionKind = "post"
	ActionWriteDiary        ActionKind = "write_diary"
	ActionObserve           ActionKind = "observe"
	ActionEat               ActionKind = "eat"
	ActionSleep             ActionKind = "sleep"
	ActionCreate            ActionKind = "create"
	ActionReflect           ActionKind = "reflect"
	ActionWork              ActionKind = "work"
)

// KnownAction reports whether k names a recognized action.
func KnownAction(k ActionKind) bool {
	switch k {
	case ActionMove, ActionStartConversation, ActionPost, ActionWriteDiary,
		ActionObserve, ActionEat, ActionSleep, ActionCreate, ActionReflect,
		ActionWork:
		return true
	}
	return false
}

// Action is the at-most-one typed action attached to a decision.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target,omitempty"` // villager name, for start_conversation
	Place  string     `json:"place,omitempty"`  // destination, for move
	Text   string     `json:"text,omitempty"`   // content, for post/write_diary/create
}

// WorldContext is the world snapshot handed to the oracle alongside a request.
type WorldContext struct {
	Day        int    `json:"day"`
	TimeOfDay  string `json:"time_of_day"`
	Season     string `json:"season"`
	Weather    string `json:"weather"`
	Population int    `json:"population"`
}

// DecisionRequest carries everything the oracle needs to decide for one
// villager.
type DecisionRequest struct {
	Agent     *agent.Agent
	Neighbors []string // names of live villagers at the same place
	Memories  []agent.Memory
	World     WorldContext
}

// Decision is the oracle's answer: an interior monologue and at most one
// action. A nil Action means the villager just observes.
type Decision struct {
	Monologue string  `json:"monologue"`
	Action    *Action `json:"action,omitempty"`
}

// SpokenLine is one exchange already in a conversation transcript.
type SpokenLine struct {
	Speaker string `json:"speaker"`
	Line    string `json:"line"`
}

// TurnRequest carries the context for one conversation turn.
type TurnRequest struct {
	Speaker    *agent.Agent
	Partner    *agent.Agent
	Transcript []SpokenLine
	Relation   string // short description of the pair's shared history
	World      WorldContext
	TurnIndex  int
}

// Turn is the oracle's contribution for one conversation turn. The
// continuation flag is recorded with the turn; the exchange length itself is
// fixed when the conversation starts.
type Turn struct {
	Line            string `json:"line"`
	InnerThought    string `json:"inner_thought"`
	WantsToContinue bool   `json:"wants_to_continue"`
}

// MoralRequest asks for a weight judgement of a villager's act.
type MoralRequest struct {
	ActorName     string
	Action        string
	Context       string
	Circumstances string
}

// MoralAssessment grades an act. RawScore runs from -1 (cruel) to 1 (kind).
type MoralAssessment struct {
	Category string  `json:"category,omitempty"`
	RawScore float64 `json:"raw_score"`
	Nuance   string  `json:"nuance,omitempty"`
}

// CognitionOracle is the external decision and dialogue service. All calls
// are plain request/response and honor context cancellation.
type CognitionOracle interface {
	Decide(ctx context.Context, req DecisionRequest) (*Decision, error)
	ConverseTurn(ctx context.Context, req TurnRequest) (*Turn, error)
	AssessMoralWeight(ctx context.Context, req MoralRequest) (*MoralAssessment, error)
}
