package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/feed"
	"github.com/ashgrove/embervale/internal/oracle"
)

// Journal persists what villagers write: board posts and diary entries.
type Journal interface {
	SaveBoardPost(ctx context.Context, agentID, agentName, content string, tick int) error
	SaveDiaryEntry(ctx context.Context, agentID, agentName, content string, tick int) error
}

// Archivist files memories into long-term recall and answers queries
// against it.
type Archivist interface {
	Index(ctx context.Context, agentID string, mem agent.Memory) error
	Recall(ctx context.Context, agentID, query string, limit int) ([]agent.Memory, error)
}

const recallLimit = 8

// Pipeline walks eligible villagers through the oracle, strictly one at a
// time, and applies whatever they decide. A failed or garbled call stalls
// only its own villager; the tick goes on.
type Pipeline struct {
	reg       *Registry
	oracle    oracle.CognitionOracle
	convos    *Conversations
	journal   Journal
	archivist Archivist
	fanout    *feed.Fanout
	tun       config.Tuning
	logger    *zap.Logger
}

// NewPipeline creates the pipeline. The journal and archivist are wired
// separately because both are optional.
func NewPipeline(reg *Registry, orc oracle.CognitionOracle, convos *Conversations, fanout *feed.Fanout, tun config.Tuning, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		reg:    reg,
		oracle: orc,
		convos: convos,
		fanout: fanout,
		tun:    tun,
		logger: logger,
	}
}

// SetJournal wires the written-artifact store.
func (p *Pipeline) SetJournal(j Journal) { p.journal = j }

// SetArchivist wires long-term memory recall.
func (p *Pipeline) SetArchivist(a Archivist) { p.archivist = a }

// Run asks up to DecisionsPerTick villagers for a decision, pausing
// InterCallDelay between calls, and applies the results in order. The
// eligible list is consumed front to back; villagers pulled into a
// conversation earlier in the same pass are skipped when their turn comes.
func (p *Pipeline) Run(ctx context.Context, world WorldState, eligible []string) []ActionRecord {
	if p.tun.DecisionsPerTick <= 0 {
		return nil
	}
	var records []ActionRecord
	asked := 0
	for _, id := range eligible {
		if asked >= p.tun.DecisionsPerTick || ctx.Err() != nil {
			break
		}
		a, ok := p.reg.Get(id)
		if !ok || !a.Alive || a.Busy() {
			continue
		}
		if asked > 0 && !pause(ctx, p.tun.InterCallDelay.Std()) {
			break
		}
		asked++
		if rec := p.decideOne(ctx, a, world); rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// decideOne runs the full decision round for a single villager: recall,
// oracle call, effect application, persistence, and the feed.
func (p *Pipeline) decideOne(ctx context.Context, a agent.Agent, world WorldState) *ActionRecord {
	req := oracle.DecisionRequest{
		Agent:     &a,
		Neighbors: p.reg.NeighborsOf(a.ID),
		Memories:  p.recall(ctx, a),
		World:     oracleContext(world, p.reg.LiveCount()),
	}

	callCtx, cancel := context.WithTimeout(ctx, p.tun.OracleTimeout.Std())
	dec, err := p.oracle.Decide(callCtx, req)
	cancel()
	if err != nil {
		p.logger.Warn("decision call failed",
			zap.String("agent", a.Name), zap.Error(err))
		return nil
	}

	if dec.Monologue != "" {
		p.fanout.Emit(feed.Event{
			Type:    feed.EventAgentThought,
			Tick:    world.Tick,
			Agent:   a.Name,
			Payload: map[string]interface{}{"thought": dec.Monologue},
		})
	}
	act := dec.Action
	if act == nil {
		// Choosing nothing is still a choice: the villager stands and watches.
		act = &oracle.Action{Kind: oracle.ActionObserve}
	}

	if act.Kind == oracle.ActionStartConversation {
		conv := p.convos.Run(ctx, a.ID, act.Target, world)
		if conv == nil {
			return nil
		}
		rec := ActionRecord{
			AgentID:   a.ID,
			AgentName: a.Name,
			Kind:      oracle.ActionStartConversation,
			Detail:    "with " + conv.PartnerName,
			Tick:      world.Tick,
		}
		p.emitAction(rec)
		return &rec
	}

	eff := Effect{
		Kind:    act.Kind,
		Place:   agent.Place(act.Place),
		Text:    act.Text,
		Thought: dec.Monologue,
		Tick:    world.Tick,
	}
	mem, err := p.reg.Apply(a.ID, eff)
	if err != nil {
		p.logger.Warn("decision not applied",
			zap.String("agent", a.Name), zap.Error(err))
		return nil
	}

	rec := ActionRecord{
		AgentID:   a.ID,
		AgentName: a.Name,
		Kind:      act.Kind,
		Detail:    detailFor(act),
		Tick:      world.Tick,
	}

	p.persistWriting(ctx, a, act, world.Tick)
	if p.archivist != nil && mem != nil {
		if err := p.archivist.Index(ctx, a.ID, *mem); err != nil {
			p.logger.Warn("memory not indexed",
				zap.String("agent", a.Name), zap.Error(err))
		}
	}
	p.assessMorally(ctx, &rec, world)
	p.emitAction(rec)
	return &rec
}

// recall gathers memories for the prompt: semantic recall when an archivist
// is wired, the recent ring otherwise or on failure.
func (p *Pipeline) recall(ctx context.Context, a agent.Agent) []agent.Memory {
	if p.archivist == nil {
		return a.RecentMemories(recallLimit)
	}
	query := a.Mind.Thought
	if query == "" {
		query = a.Activity
	}
	mems, err := p.archivist.Recall(ctx, a.ID, query, recallLimit)
	if err != nil {
		p.logger.Warn("memory recall failed",
			zap.String("agent", a.Name), zap.Error(err))
		return a.RecentMemories(recallLimit)
	}
	return mems
}

// persistWriting appends board posts and diary entries to the journal.
func (p *Pipeline) persistWriting(ctx context.Context, a agent.Agent, act *oracle.Action, tick int) {
	if p.journal == nil || act.Text == "" {
		return
	}
	var err error
	switch act.Kind {
	case oracle.ActionPost:
		err = p.journal.SaveBoardPost(ctx, a.ID, a.Name, act.Text, tick)
	case oracle.ActionWriteDiary:
		err = p.journal.SaveDiaryEntry(ctx, a.ID, a.Name, act.Text, tick)
	default:
		return
	}
	if err != nil {
		p.logger.Warn("writing not persisted",
			zap.String("agent", a.Name), zap.String("kind", string(act.Kind)), zap.Error(err))
	}
}

// assessMorally asks the oracle to weigh the act and tags the record. Purely
// best-effort; a failed judgement leaves the record untagged.
func (p *Pipeline) assessMorally(ctx context.Context, rec *ActionRecord, world WorldState) {
	switch rec.Kind {
	case oracle.ActionSleep, oracle.ActionObserve:
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, p.tun.OracleTimeout.Std())
	defer cancel()
	ma, err := p.oracle.AssessMoralWeight(callCtx, oracle.MoralRequest{
		ActorName: rec.AgentName,
		Action:    string(rec.Kind),
		Context:   rec.Detail,
		Circumstances: fmt.Sprintf("day %d, %s, %s, %s weather",
			world.Day, world.TimeOfDay(), world.Season, world.Weather),
	})
	if err != nil {
		p.logger.Debug("moral assessment failed",
			zap.String("agent", rec.AgentName), zap.Error(err))
		return
	}
	rec.MoralCategory = ma.Category
	rec.Nuance = ma.Nuance
}

func (p *Pipeline) emitAction(rec ActionRecord) {
	payload := map[string]interface{}{"kind": string(rec.Kind)}
	if rec.Detail != "" {
		payload["detail"] = rec.Detail
	}
	if rec.MoralCategory != "" {
		payload["moral_category"] = rec.MoralCategory
	}
	p.fanout.Emit(feed.Event{
		Type:    feed.EventAgentAction,
		Tick:    rec.Tick,
		Agent:   rec.AgentName,
		Payload: payload,
	})
}

// detailFor renders the human-readable fragment of an action record.
func detailFor(act *oracle.Action) string {
	switch act.Kind {
	case oracle.ActionMove:
		return "to the " + act.Place
	case oracle.ActionPost, oracle.ActionWriteDiary, oracle.ActionCreate:
		return snippet(act.Text)
	}
	return ""
}

// oracleContext shapes the world state for a prompt.
func oracleContext(w WorldState, population int) oracle.WorldContext {
	return oracle.WorldContext{
		Day:        w.Day,
		TimeOfDay:  w.TimeOfDay(),
		Season:     string(w.Season),
		Weather:    string(w.Weather),
		Population: population,
	}
}

// pause sleeps for d unless the context ends first. Reports whether the
// caller should keep going.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
