package sim

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/feed"
	"github.com/ashgrove/embervale/internal/oracle"
)

// testTuning is the reference tuning with the pacing delays zeroed.
func testTuning() config.Tuning {
	tun := config.DefaultTuning()
	tun.InterCallDelay = 0
	tun.TurnDelay = 0
	return tun
}

func newVillager(name string, place agent.Place) *agent.Agent {
	return agent.New(name, agent.Persona{
		Traits:      []string{"steady"},
		SpeechStyle: "plain",
	}, place, 0)
}

// scriptedOracle plays back canned responses and counts calls.
type scriptedOracle struct {
	decisions   []oracle.Decision
	decideErr   error
	decidePanic bool

	failTurnAt int // turn index that fails; -1 never
	moral      *oracle.MoralAssessment
	moralErr   error

	decideCalls int
	turnCalls   int
	moralCalls  int
	speakers    []string
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{failTurnAt: -1}
}

func (o *scriptedOracle) Decide(ctx context.Context, req oracle.DecisionRequest) (*oracle.Decision, error) {
	o.decideCalls++
	if o.decidePanic {
		panic("scripted panic")
	}
	if o.decideErr != nil {
		return nil, o.decideErr
	}
	if len(o.decisions) == 0 {
		return &oracle.Decision{Monologue: "a quiet moment"}, nil
	}
	d := o.decisions[0]
	if len(o.decisions) > 1 {
		o.decisions = o.decisions[1:]
	}
	return &d, nil
}

func (o *scriptedOracle) ConverseTurn(ctx context.Context, req oracle.TurnRequest) (*oracle.Turn, error) {
	idx := o.turnCalls
	o.turnCalls++
	if o.failTurnAt >= 0 && idx == o.failTurnAt {
		return nil, fmt.Errorf("turn %d unavailable", idx)
	}
	o.speakers = append(o.speakers, req.Speaker.Name)
	return &oracle.Turn{
		Line:            fmt.Sprintf("line %d", idx),
		InnerThought:    "hm",
		WantsToContinue: true,
	}, nil
}

func (o *scriptedOracle) AssessMoralWeight(ctx context.Context, req oracle.MoralRequest) (*oracle.MoralAssessment, error) {
	o.moralCalls++
	if o.moralErr != nil {
		return nil, o.moralErr
	}
	if o.moral != nil {
		m := *o.moral
		return &m, nil
	}
	return &oracle.MoralAssessment{RawScore: 0}, nil
}

// captureSink collects feed events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []feed.Event
}

func (c *captureSink) Emit(e feed.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) byType(t feed.EventType) []feed.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []feed.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeJournal struct {
	posts   []string
	diaries []string
	err     error
}

func (j *fakeJournal) SaveBoardPost(ctx context.Context, agentID, agentName, content string, tick int) error {
	if j.err != nil {
		return j.err
	}
	j.posts = append(j.posts, content)
	return nil
}

func (j *fakeJournal) SaveDiaryEntry(ctx context.Context, agentID, agentName, content string, tick int) error {
	if j.err != nil {
		return j.err
	}
	j.diaries = append(j.diaries, content)
	return nil
}

type fakeGraph struct {
	desc        string
	describeErr error
	boosts      []string
	decays      int
}

func (g *fakeGraph) Describe(ctx context.Context, aName, bName string) (string, error) {
	if g.describeErr != nil {
		return "", g.describeErr
	}
	return g.desc, nil
}

func (g *fakeGraph) RecordConversation(ctx context.Context, aName, bName string, boost float64, tick int) error {
	g.boosts = append(g.boosts, fmt.Sprintf("%s+%s@%.2f", aName, bName, boost))
	return nil
}

func (g *fakeGraph) DecayDaily(ctx context.Context, decay float64) error {
	g.decays++
	return nil
}

type fakeConvoStore struct {
	saved []ConversationRecord
	err   error
}

func (s *fakeConvoStore) SaveConversation(ctx context.Context, rec ConversationRecord) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, rec)
	return nil
}

type fakeArchivist struct {
	recalled    []agent.Memory
	recallErr   error
	indexErr    error
	indexed     []agent.Memory
	recallCalls int
}

func (f *fakeArchivist) Index(ctx context.Context, agentID string, mem agent.Memory) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = append(f.indexed, mem)
	return nil
}

func (f *fakeArchivist) Recall(ctx context.Context, agentID, query string, limit int) ([]agent.Memory, error) {
	f.recallCalls++
	if f.recallErr != nil {
		return nil, f.recallErr
	}
	return f.recalled, nil
}

type fakePersistence struct {
	world  *WorldState
	agents []*agent.Agent

	savedWorlds  int
	savedRosters int
	wiped        bool
}

func (p *fakePersistence) SaveWorld(ctx context.Context, w WorldState) error {
	p.savedWorlds++
	cp := w
	p.world = &cp
	return nil
}

func (p *fakePersistence) LoadWorld(ctx context.Context) (*WorldState, error) {
	return p.world, nil
}

func (p *fakePersistence) SaveAgents(ctx context.Context, roster []agent.Agent) error {
	p.savedRosters++
	return nil
}

func (p *fakePersistence) LoadLiveAgents(ctx context.Context) ([]*agent.Agent, error) {
	return p.agents, nil
}

func (p *fakePersistence) Wipe(ctx context.Context) error {
	p.wiped = true
	p.world = nil
	p.agents = nil
	return nil
}

var testLogger = zap.NewNop()
