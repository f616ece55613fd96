package sim

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/feed"
	"github.com/ashgrove/embervale/internal/oracle"
)

// RelationGraph tracks pairwise familiarity between villagers.
type RelationGraph interface {
	// Describe returns a short phrase for the pair's shared history, or ""
	// when they have none.
	Describe(ctx context.Context, aName, bName string) (string, error)
	// RecordConversation strengthens the tie between two villagers.
	RecordConversation(ctx context.Context, aName, bName string, boost float64, tick int) error
}

// ConversationStore persists finished transcripts.
type ConversationStore interface {
	SaveConversation(ctx context.Context, rec ConversationRecord) error
}

// TurnRecord is one spoken turn of a finished conversation. The continuation
// flag is kept with the turn for the record; it does not steer the exchange.
type TurnRecord struct {
	Speaker         string `json:"speaker"`
	Line            string `json:"line"`
	InnerThought    string `json:"inner_thought,omitempty"`
	WantsToContinue bool   `json:"wants_to_continue"`
}

// ConversationRecord is a finished exchange between two villagers.
type ConversationRecord struct {
	ID            string       `json:"id"`
	InitiatorID   string       `json:"initiator_id"`
	InitiatorName string       `json:"initiator_name"`
	PartnerID     string       `json:"partner_id"`
	PartnerName   string       `json:"partner_name"`
	Location      agent.Place  `json:"location"`
	Tick          int          `json:"tick"`
	Turns         []TurnRecord `json:"turns"`
}

// Conversations orchestrates face-to-face exchanges. One runs at a time, on
// the scheduler's goroutine, inside the decision phase of its tick.
type Conversations struct {
	reg       *Registry
	oracle    oracle.CognitionOracle
	graph     RelationGraph
	store     ConversationStore
	archivist Archivist
	fanout    *feed.Fanout
	tun       config.Tuning
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewConversations creates the orchestrator. The relation graph and the
// transcript store are wired separately because both are optional.
func NewConversations(reg *Registry, orc oracle.CognitionOracle, fanout *feed.Fanout, tun config.Tuning, rng *rand.Rand, logger *zap.Logger) *Conversations {
	return &Conversations{
		reg:    reg,
		oracle: orc,
		fanout: fanout,
		tun:    tun,
		rng:    rng,
		logger: logger,
	}
}

// SetGraph wires the relation graph.
func (c *Conversations) SetGraph(g RelationGraph) { c.graph = g }

// SetStore wires the transcript store.
func (c *Conversations) SetStore(s ConversationStore) { c.store = s }

// SetArchivist wires the semantic memory archive.
func (c *Conversations) SetArchivist(a Archivist) { c.archivist = a }

// Run plays out one conversation between the initiator and the named
// partner. The exchange length is fixed up front between MinTurns and
// MaxTurns, speakers alternate starting with the initiator, and both
// villagers are released back to their places no matter how it ends. An
// invalid pairing is skipped quietly and returns nil; so does an exchange
// where nobody got a word out.
func (c *Conversations) Run(ctx context.Context, initiatorID, partnerName string, world WorldState) *ConversationRecord {
	initiator, ok := c.reg.Get(initiatorID)
	if !ok || !initiator.Alive {
		c.logger.Debug("conversation initiator unavailable", zap.String("id", initiatorID))
		return nil
	}
	pp, ok := c.reg.byName(partnerName)
	if !ok {
		c.logger.Debug("conversation partner unknown",
			zap.String("initiator", initiator.Name), zap.String("partner", partnerName))
		return nil
	}
	partner := *pp
	switch {
	case partner.ID == initiator.ID:
		c.logger.Debug("villager tried to talk to themselves", zap.String("name", initiator.Name))
		return nil
	case partner.Location != initiator.Location:
		c.logger.Debug("conversation partner elsewhere",
			zap.String("initiator", initiator.Name), zap.String("partner", partner.Name))
		return nil
	case partner.Busy() || initiator.Busy():
		c.logger.Debug("conversation pair not free",
			zap.String("initiator", initiator.Name), zap.String("partner", partner.Name))
		return nil
	}

	c.reg.SetActivity(initiator.ID, agent.ActivityConversation)
	c.reg.SetActivity(partner.ID, agent.ActivityConversation)
	defer func() {
		c.reg.SetActivity(initiator.ID, agent.AtPlace(initiator.Location))
		c.reg.SetActivity(partner.ID, agent.AtPlace(partner.Location))
	}()

	spread := c.tun.MaxTurns - c.tun.MinTurns
	if spread < 0 {
		spread = 0
	}
	turnCount := c.tun.MinTurns + c.rng.Intn(spread+1)

	relation := ""
	if c.graph != nil {
		desc, err := c.graph.Describe(ctx, initiator.Name, partner.Name)
		if err != nil {
			c.logger.Debug("relation lookup failed", zap.Error(err))
		} else {
			relation = desc
		}
	}

	rec := &ConversationRecord{
		ID:            uuid.NewString(),
		InitiatorID:   initiator.ID,
		InitiatorName: initiator.Name,
		PartnerID:     partner.ID,
		PartnerName:   partner.Name,
		Location:      initiator.Location,
		Tick:          world.Tick,
	}

	c.fanout.Emit(feed.Event{
		Type:  feed.EventConversationStarted,
		Tick:  world.Tick,
		Agent: initiator.Name,
		Payload: map[string]interface{}{
			"partner":  partner.Name,
			"location": string(initiator.Location),
		},
	})

	var transcript []oracle.SpokenLine
	for i := 0; i < turnCount; i++ {
		if i > 0 && !pause(ctx, c.tun.TurnDelay.Std()) {
			break
		}
		speaker, listener := &initiator, &partner
		if i%2 == 1 {
			speaker, listener = &partner, &initiator
		}
		callCtx, cancel := context.WithTimeout(ctx, c.tun.OracleTimeout.Std())
		turn, err := c.oracle.ConverseTurn(callCtx, oracle.TurnRequest{
			Speaker:    speaker,
			Partner:    listener,
			Transcript: transcript,
			Relation:   relation,
			World:      oracleContext(world, c.reg.LiveCount()),
			TurnIndex:  i,
		})
		cancel()
		if err != nil {
			// Close the exchange with what was said so far.
			c.logger.Warn("conversation turn failed",
				zap.String("speaker", speaker.Name), zap.Int("turn", i), zap.Error(err))
			break
		}
		transcript = append(transcript, oracle.SpokenLine{Speaker: speaker.Name, Line: turn.Line})
		rec.Turns = append(rec.Turns, TurnRecord{
			Speaker:         speaker.Name,
			Line:            turn.Line,
			InnerThought:    turn.InnerThought,
			WantsToContinue: turn.WantsToContinue,
		})
		c.fanout.Emit(feed.Event{
			Type:  feed.EventConversationLine,
			Tick:  world.Tick,
			Agent: speaker.Name,
			Payload: map[string]interface{}{
				"line":    turn.Line,
				"partner": listener.Name,
			},
		})
	}

	c.fanout.Emit(feed.Event{
		Type:  feed.EventConversationEnded,
		Tick:  world.Tick,
		Agent: initiator.Name,
		Payload: map[string]interface{}{
			"partner": partner.Name,
			"turns":   len(rec.Turns),
		},
	})

	if len(rec.Turns) == 0 {
		return nil
	}

	if c.store != nil {
		if err := c.store.SaveConversation(ctx, *rec); err != nil {
			c.logger.Warn("conversation transcript not saved",
				zap.String("id", rec.ID), zap.Error(err))
		}
	}

	opener := snippet(rec.Turns[0].Line)
	c.remember(ctx, initiator.ID, "Talked with "+partner.Name+": "+opener, world.Tick)
	c.remember(ctx, partner.ID, "Talked with "+initiator.Name+": "+opener, world.Tick)

	if c.graph != nil {
		if err := c.graph.RecordConversation(ctx, initiator.Name, partner.Name, c.tun.ConversationBoost, world.Tick); err != nil {
			c.logger.Warn("relation boost not recorded", zap.Error(err))
		}
	}

	return rec
}

// remember appends the memory to the villager and indexes it for recall.
func (c *Conversations) remember(ctx context.Context, id, content string, tick int) {
	c.reg.AddMemory(id, content, 0.6, tick)
	if c.archivist != nil {
		mem := agent.Memory{Content: content, Importance: 0.6, Tick: tick}
		if err := c.archivist.Index(ctx, id, mem); err != nil {
			c.logger.Warn("conversation memory not indexed", zap.String("agent_id", id), zap.Error(err))
		}
	}
}
