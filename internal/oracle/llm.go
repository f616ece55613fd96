package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/provider"
)

// LLM implements CognitionOracle over the provider router.
type LLM struct {
	router *provider.Router
	model  string
	logger *zap.Logger
}

// NewLLM creates the model-backed oracle. model is passed on every request;
// per-villager provider bindings are the router's concern.
func NewLLM(router *provider.Router, model string, logger *zap.Logger) *LLM {
	return &LLM{router: router, model: model, logger: logger}
}

// Decide asks the model what one villager does next. A response without a
// recognizable action degrades to observe-only, never an error.
func (l *LLM) Decide(ctx context.Context, req DecisionRequest) (*Decision, error) {
	chatReq := &provider.ChatRequest{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: personaPrompt(req.Agent)},
			{Role: "user", Content: decisionPrompt(req)},
		},
		Temperature: 0.9,
		MaxTokens:   600,
	}
	resp, err := l.router.Route(ctx, req.Agent.ID, chatReq)
	if err != nil {
		return nil, fmt.Errorf("decide for %s: %w", req.Agent.Name, err)
	}

	var d Decision
	if err := decodeObject(resp.Content, &d); err != nil {
		l.logger.Debug("decision response not parseable, treating as observation",
			zap.String("agent", req.Agent.Name), zap.Error(err))
		return &Decision{Monologue: strings.TrimSpace(resp.Content)}, nil
	}
	if d.Action != nil && !KnownAction(d.Action.Kind) {
		l.logger.Debug("unrecognized action kind, dropping",
			zap.String("agent", req.Agent.Name), zap.String("kind", string(d.Action.Kind)))
		d.Action = nil
	}
	return &d, nil
}

// ConverseTurn asks the model for the speaker's next line in an exchange.
func (l *LLM) ConverseTurn(ctx context.Context, req TurnRequest) (*Turn, error) {
	chatReq := &provider.ChatRequest{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: personaPrompt(req.Speaker)},
			{Role: "user", Content: turnPrompt(req)},
		},
		Temperature: 1.0,
		MaxTokens:   400,
	}
	resp, err := l.router.Route(ctx, req.Speaker.ID, chatReq)
	if err != nil {
		return nil, fmt.Errorf("turn for %s: %w", req.Speaker.Name, err)
	}

	var t Turn
	if err := decodeObject(resp.Content, &t); err != nil {
		// A bare line is still usable dialogue.
		line := strings.TrimSpace(resp.Content)
		if line == "" {
			return nil, fmt.Errorf("empty turn for %s", req.Speaker.Name)
		}
		return &Turn{Line: line}, nil
	}
	if t.Line == "" {
		return nil, fmt.Errorf("turn without a line for %s", req.Speaker.Name)
	}
	return &t, nil
}

// AssessMoralWeight asks the model to grade an act for the reward rules.
func (l *LLM) AssessMoralWeight(ctx context.Context, req MoralRequest) (*MoralAssessment, error) {
	user := fmt.Sprintf(
		"Actor: %s\nAct: %s\nContext: %s\nCircumstances: %s\n\n"+
			"Judge this small act. Respond with a single JSON object: "+
			`{"category": "help|create|share|kindness|work or empty", "raw_score": -1.0..1.0, "nuance": "one sentence"}`,
		req.ActorName, req.Action, req.Context, req.Circumstances)

	chatReq := &provider.ChatRequest{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: "You weigh the moral shade of everyday acts in a small village. Be brief and fair."},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   200,
	}
	resp, err := l.router.Route(ctx, "moral-judge", chatReq)
	if err != nil {
		return nil, fmt.Errorf("assess %q: %w", req.Action, err)
	}

	var m MoralAssessment
	if err := decodeObject(resp.Content, &m); err != nil {
		return nil, fmt.Errorf("assess %q: %w", req.Action, err)
	}
	if m.RawScore > 1 {
		m.RawScore = 1
	}
	if m.RawScore < -1 {
		m.RawScore = -1
	}
	return &m, nil
}

// GeneratePersona asks the model to invent a newcomer. Implements
// agent.PersonaSource.
func (l *LLM) GeneratePersona(ctx context.Context, existingNames []string, worldContext string) (*agent.GeneratedPersona, error) {
	var b strings.Builder
	b.WriteString("Invent a new villager arriving in Embervale, a small village with a cafe, plaza, garden, workshop and library.\n")
	if len(existingNames) > 0 {
		fmt.Fprintf(&b, "Already living here (do not reuse these names): %s.\n", strings.Join(existingNames, ", "))
	}
	if worldContext != "" {
		fmt.Fprintf(&b, "The village right now: %s\n", worldContext)
	}
	b.WriteString("\nRespond with a single JSON object:\n")
	b.WriteString(`{"name": "...", "persona": {"traits": ["..."], "values": ["..."], "flaws": ["..."], "quirks": ["..."], "speech_style": "...", "backstory": "two sentences"}}`)

	chatReq := &provider.ChatRequest{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: "You write grounded, modest village characters. No chosen ones, no dark lords."},
			{Role: "user", Content: b.String()},
		},
		Temperature: 1.0,
		MaxTokens:   500,
	}
	resp, err := l.router.Route(ctx, "persona-generator", chatReq)
	if err != nil {
		return nil, fmt.Errorf("generate persona: %w", err)
	}

	var gp agent.GeneratedPersona
	if err := decodeObject(resp.Content, &gp); err != nil {
		return nil, fmt.Errorf("generate persona: %w", err)
	}
	if gp.Name == "" {
		return nil, nil
	}
	return &gp, nil
}

// Narrate turns a world digest into a short chronicle entry.
func (l *LLM) Narrate(ctx context.Context, digest string) (string, error) {
	chatReq := &provider.ChatRequest{
		Model: l.model,
		Messages: []provider.Message{
			{Role: "system", Content: "You are the village chronicler of Embervale. Write one warm, plain paragraph. No lists, no headers."},
			{Role: "user", Content: digest},
		},
		Temperature: 0.9,
		MaxTokens:   400,
	}
	resp, err := l.router.Route(ctx, "chronicler", chatReq)
	if err != nil {
		return "", fmt.Errorf("narrate: %w", err)
	}
	entry := strings.TrimSpace(resp.Content)
	if entry == "" {
		return "", fmt.Errorf("narrate: empty entry")
	}
	return entry, nil
}

// personaPrompt renders the fixed identity block for a villager.
func personaPrompt(a *agent.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a villager of Embervale.\n", a.Name)
	if len(a.Persona.Traits) > 0 {
		fmt.Fprintf(&b, "Traits: %s.\n", strings.Join(a.Persona.Traits, ", "))
	}
	if len(a.Persona.Values) > 0 {
		fmt.Fprintf(&b, "You value %s.\n", strings.Join(a.Persona.Values, " and "))
	}
	if len(a.Persona.Flaws) > 0 {
		fmt.Fprintf(&b, "Your flaw: you %s.\n", strings.Join(a.Persona.Flaws, "; you "))
	}
	if len(a.Persona.Quirks) > 0 {
		fmt.Fprintf(&b, "Quirk: %s.\n", strings.Join(a.Persona.Quirks, "; "))
	}
	if a.Persona.SpeechStyle != "" {
		fmt.Fprintf(&b, "You speak in %s.\n", a.Persona.SpeechStyle)
	}
	if a.Persona.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", a.Persona.Backstory)
	}
	b.WriteString("Stay in character. You are a person living a small life, not an assistant.\n")
	return b.String()
}

// decisionPrompt renders the situation block for a decision request.
func decisionPrompt(req DecisionRequest) string {
	a := req.Agent
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d, %s, %s, %s. %d villagers live here.\n",
		req.World.Day, req.World.TimeOfDay, req.World.Season, req.World.Weather, req.World.Population)
	fmt.Fprintf(&b, "You are at the %s, currently %s.\n", a.Location, a.Activity)
	fmt.Fprintf(&b, "Health %.0f, hunger %.0f, energy %.0f. You feel %s.\n",
		a.Vitals.Health, a.Vitals.Hunger, a.Vitals.Energy, a.Mind.Mood)
	if len(req.Neighbors) > 0 {
		fmt.Fprintf(&b, "Also here: %s.\n", strings.Join(req.Neighbors, ", "))
	} else {
		b.WriteString("You are alone here.\n")
	}
	if len(req.Memories) > 0 {
		b.WriteString("You remember:\n")
		for _, m := range req.Memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	if len(a.Mind.Worries) > 0 {
		fmt.Fprintf(&b, "On your mind: %s.\n", strings.Join(a.Mind.Worries, "; "))
	}
	if len(a.Mind.Desires) > 0 {
		fmt.Fprintf(&b, "You want: %s.\n", strings.Join(a.Mind.Desires, "; "))
	}

	b.WriteString("\nWhat do you do next? Respond with a single JSON object:\n")
	b.WriteString(`{"monologue": "your inner voice, 1-3 sentences", "action": {"kind": "...", "target": "...", "place": "...", "text": "..."}}` + "\n")
	b.WriteString("Action kinds: move (place: home|cafe|plaza|garden|workshop|library), start_conversation (target: a villager here), post (text), write_diary (text), eat, sleep, create (text), reflect, work, observe.\n")
	b.WriteString("Omit the action entirely to just watch the day go by.\n")
	return b.String()
}

// turnPrompt renders the conversation-so-far block for a turn request.
func turnPrompt(req TurnRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are talking with %s at the %s. Day %d, %s, %s.\n",
		req.Partner.Name, req.Speaker.Location, req.World.Day, req.World.TimeOfDay, req.World.Weather)
	if req.Relation != "" {
		fmt.Fprintf(&b, "Between you: %s\n", req.Relation)
	}
	if mems := req.Speaker.RecentMemories(3); len(mems) > 0 {
		b.WriteString("On your mind lately:\n")
		for _, m := range mems {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	if len(req.Transcript) == 0 {
		b.WriteString("You are opening the conversation.\n")
	} else {
		b.WriteString("So far:\n")
		for _, line := range req.Transcript {
			fmt.Fprintf(&b, "%s: %s\n", line.Speaker, line.Line)
		}
	}
	b.WriteString("\nSpeak your next line. Respond with a single JSON object:\n")
	b.WriteString(`{"line": "what you say aloud", "inner_thought": "what you keep to yourself", "wants_to_continue": true}` + "\n")
	return b.String()
}

// decodeObject finds the first JSON object in raw model output and decodes
// it. Models wrap JSON in prose and code fences often enough that a plain
// Unmarshal is not reliable.
func decodeObject(content string, v interface{}) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}
