package sim

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/feed"
)

// Persistence saves and restores the durable world: the clock state and the
// roster. Implementations append everything else (memories, transcripts,
// writings) through the narrower interfaces.
type Persistence interface {
	SaveWorld(ctx context.Context, w WorldState) error
	LoadWorld(ctx context.Context) (*WorldState, error) // nil, nil when no save exists
	SaveAgents(ctx context.Context, roster []agent.Agent) error
	LoadLiveAgents(ctx context.Context) ([]*agent.Agent, error)
	Wipe(ctx context.Context) error
}

// RelationUpkeep fades ties that go untended.
type RelationUpkeep interface {
	DecayDaily(ctx context.Context, decay float64) error
}

// Chronicler writes the village's running history.
type Chronicler interface {
	Compose(ctx context.Context, world WorldState, roster []agent.Agent, recent []ActionRecord) (string, error)
}

// Scheduler drives the simulation: one goroutine, one ticker, every tick the
// same phases in the same order. Nothing else mutates the world.
type Scheduler struct {
	cfg      config.SimConfig
	reg      *Registry
	rules    *Rules
	pipeline *Pipeline
	gen      *agent.Generator
	fanout   *feed.Fanout
	rng      *rand.Rand
	logger   *zap.Logger

	clockMu sync.Mutex
	clock   *Clock

	persist    Persistence
	relations  RelationUpkeep
	chronicler Chronicler

	// lastRecords holds the previous tick's applied actions; the reward
	// rules judge a tick one tick late, once its consequences exist.
	lastRecords []ActionRecord

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	inTick  atomic.Bool
}

// NewScheduler wires the core loop. Persistence, relations, and the
// chronicler attach separately; the simulation runs fine without any of
// them.
func NewScheduler(cfg config.SimConfig, clock *Clock, reg *Registry, rules *Rules, pipeline *Pipeline, gen *agent.Generator, fanout *feed.Fanout, rng *rand.Rand, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		clock:    clock,
		reg:      reg,
		rules:    rules,
		pipeline: pipeline,
		gen:      gen,
		fanout:   fanout,
		rng:      rng,
		logger:   logger,
	}
}

// SetPersistence wires durable storage.
func (s *Scheduler) SetPersistence(p Persistence) { s.persist = p }

// SetRelations wires the relation upkeep sweep.
func (s *Scheduler) SetRelations(r RelationUpkeep) { s.relations = r }

// SetChronicler wires the history writer.
func (s *Scheduler) SetChronicler(c Chronicler) { s.chronicler = c }

// Bootstrap restores a saved world if one exists, otherwise seeds a fresh
// village.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	if s.persist != nil {
		saved, err := s.persist.LoadWorld(ctx)
		if err != nil {
			return fmt.Errorf("load world state: %w", err)
		}
		if saved != nil {
			roster, err := s.persist.LoadLiveAgents(ctx)
			if err != nil {
				return fmt.Errorf("load roster: %w", err)
			}
			s.clockMu.Lock()
			s.clock.Restore(*saved)
			s.clockMu.Unlock()
			for _, a := range roster {
				s.reg.Add(a)
			}
			s.logger.Info("village restored",
				zap.Int("tick", saved.Tick),
				zap.Int("day", saved.Day),
				zap.Int("villagers", len(roster)))
			return nil
		}
	}
	s.seed(ctx)
	return nil
}

// seed populates a fresh world with the founding villagers.
func (s *Scheduler) seed(ctx context.Context) {
	roster := agent.SeedRoster(0)
	if s.cfg.SeedRoster > 0 && s.cfg.SeedRoster < len(roster) {
		roster = roster[:s.cfg.SeedRoster]
	}
	for _, a := range roster {
		s.reg.Add(a)
	}
	s.logger.Info("village seeded", zap.Int("villagers", len(roster)))
	if s.persist != nil {
		s.flush(ctx)
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx)
	s.logger.Info("simulation started",
		zap.Duration("tick_interval", s.cfg.TickInterval.Std()))
}

// Stop halts the loop, waits for any in-flight tick to finish, and flushes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s.flush(ctx)
		cancel()
	}
	s.logger.Info("simulation stopped")
}

// Reset wipes saved state, reseeds the founding villagers, and puts the
// clock back to the morning of day one. A running simulation keeps running
// on the fresh world.
func (s *Scheduler) Reset(ctx context.Context) error {
	wasRunning := s.Running()
	if wasRunning {
		s.Stop()
	}
	if s.persist != nil {
		if err := s.persist.Wipe(ctx); err != nil {
			return fmt.Errorf("wipe saved state: %w", err)
		}
	}
	s.reg.Clear()
	s.clockMu.Lock()
	s.clock = NewClock(s.cfg.Tuning)
	s.clockMu.Unlock()
	s.lastRecords = nil
	s.seed(ctx)
	s.logger.Info("village reset")
	if wasRunning {
		s.Start()
	}
	return nil
}

// Running reports whether the loop is live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// World returns a copy of the current world state.
func (s *Scheduler) World() WorldState {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return s.clock.State()
}

// Status is the control-surface view of the simulation.
type Status struct {
	Running    bool       `json:"running"`
	World      WorldState `json:"world"`
	TimeOfDay  string     `json:"time_of_day"`
	IsNight    bool       `json:"is_night"`
	Population int        `json:"population"`
}

// Status reports the loop state and the world at a glance.
func (s *Scheduler) Status() Status {
	s.clockMu.Lock()
	world := s.clock.State()
	night := s.clock.IsNighttime()
	s.clockMu.Unlock()
	return Status{
		Running:    s.Running(),
		World:      world,
		TimeOfDay:  world.TimeOfDay(),
		IsNight:    night,
		Population: s.reg.LiveCount(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.TickInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one full simulation step. Ticks never overlap: if the previous
// one is still going when the ticker fires, this one is skipped whole.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.inTick.CompareAndSwap(false, true) {
		s.logger.Warn("previous tick still running, skipping")
		return
	}
	defer s.inTick.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	s.clockMu.Lock()
	newDay := s.clock.Advance(s.rng)
	world := s.clock.State()
	isNight := s.clock.IsNighttime()
	s.clockMu.Unlock()

	s.logger.Info("tick",
		zap.Int("tick", world.Tick),
		zap.Int("day", world.Day),
		zap.String("time", world.TimeOfDay()),
		zap.String("season", string(world.Season)),
		zap.String("weather", string(world.Weather)),
		zap.Int("population", s.reg.LiveCount()))

	s.reg.Decay(isNight)

	verdict := s.rules.Evaluate(s.reg.LiveSnapshot(), world, s.lastRecords)
	s.applyVerdict(ctx, verdict, world)

	if woken := s.reg.WakeRested(); len(woken) > 0 {
		s.logger.Debug("woke rested", zap.Strings("names", woken))
	}
	eligible := s.reg.SelectEligibleAndAutoSleep()
	s.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	s.lastRecords = s.pipeline.Run(ctx, world, eligible)

	if newDay && s.relations != nil {
		if err := s.relations.DecayDaily(ctx, s.cfg.Tuning.RelationDecay); err != nil {
			s.logger.Warn("relation decay failed", zap.Error(err))
		}
	}

	if s.persist != nil && s.cfg.FlushInterval > 0 && world.Tick%s.cfg.FlushInterval == 0 {
		s.flush(ctx)
	}

	s.emitSnapshot()
}

// applyVerdict carries out the rules' decisions: deaths, then a possible
// newcomer, then community rewards, then the cosmetic event and the
// chronicle.
func (s *Scheduler) applyVerdict(ctx context.Context, v Verdict, world WorldState) {
	for _, d := range v.Deaths {
		if err := s.reg.MarkDead(d.ID, d.Cause, world.Tick); err != nil {
			s.logger.Warn("death not applied", zap.String("name", d.Name), zap.Error(err))
			continue
		}
		s.clockMu.Lock()
		s.clock.RecordDeaths(1)
		s.clockMu.Unlock()
		s.logger.Info("villager died",
			zap.String("name", d.Name), zap.String("cause", d.Cause))
		s.fanout.Emit(feed.Event{
			Type:    feed.EventDeath,
			Tick:    world.Tick,
			Agent:   d.Name,
			Payload: map[string]interface{}{"cause": d.Cause},
		})
	}

	if v.SpawnWanted {
		s.spawn(ctx, world)
	}

	for _, rw := range v.Rewards {
		touched := s.reg.ApplyReward(rw.Field, rw.Delta)
		s.logger.Info("community reward",
			zap.String("category", rw.Category),
			zap.String("actor", rw.Actor),
			zap.Int("villagers", touched))
		payload := map[string]interface{}{
			"category": rw.Category,
			"field":    string(rw.Field),
			"delta":    rw.Delta,
			"message":  rw.Message,
		}
		if rw.Nuance != "" {
			payload["nuance"] = rw.Nuance
		}
		s.fanout.Emit(feed.Event{
			Type:    feed.EventReward,
			Tick:    world.Tick,
			Agent:   rw.Actor,
			Payload: payload,
		})
	}

	if v.FlavorEvent != "" {
		s.fanout.Emit(feed.Event{
			Type:    feed.EventRandomEvent,
			Tick:    world.Tick,
			Payload: map[string]interface{}{"text": v.FlavorEvent},
		})
	}

	if v.ChronicleDue && s.chronicler != nil {
		s.writeChronicle(ctx, world)
	}
}

// spawn brings a newcomer into the village at the plaza.
func (s *Scheduler) spawn(ctx context.Context, world WorldState) {
	scene := fmt.Sprintf("Day %d in Embervale, %s, %s, %s weather, population %d.",
		world.Day, world.TimeOfDay(), world.Season, world.Weather, s.reg.LiveCount())
	name, persona := s.gen.Generate(ctx, s.reg.Names(), scene)
	newcomer := agent.New(name, persona, agent.PlacePlaza, world.Tick)
	s.reg.Add(newcomer)
	s.clockMu.Lock()
	s.clock.RecordBirth()
	s.clockMu.Unlock()
	s.logger.Info("newcomer arrived", zap.String("name", name))
	s.fanout.Emit(feed.Event{
		Type:    feed.EventBirth,
		Tick:    world.Tick,
		Agent:   name,
		Payload: map[string]interface{}{"location": string(agent.PlacePlaza)},
	})
}

// writeChronicle asks the chronicler for an entry over the latest actions.
func (s *Scheduler) writeChronicle(ctx context.Context, world WorldState) {
	entry, err := s.chronicler.Compose(ctx, world, s.reg.LiveSnapshot(), s.lastRecords)
	if err != nil {
		s.logger.Warn("chronicle entry failed", zap.Error(err))
		return
	}
	s.fanout.Emit(feed.Event{
		Type:    feed.EventChronicle,
		Tick:    world.Tick,
		Payload: map[string]interface{}{"entry": entry},
	})
}

// flush saves the world state and the full roster.
func (s *Scheduler) flush(ctx context.Context) {
	world := s.World()
	if err := s.persist.SaveWorld(ctx, world); err != nil {
		s.logger.Warn("world state not saved", zap.Error(err))
	}
	if err := s.persist.SaveAgents(ctx, s.reg.Roster()); err != nil {
		s.logger.Warn("roster not saved", zap.Error(err))
	}
}

// emitSnapshot publishes the per-tick world summary to the feed.
func (s *Scheduler) emitSnapshot() {
	world := s.World()
	s.fanout.Emit(feed.Event{
		Type: feed.EventWorldSnapshot,
		Tick: world.Tick,
		Payload: map[string]interface{}{
			"day":        world.Day,
			"time":       world.TimeOfDay(),
			"season":     string(world.Season),
			"weather":    string(world.Weather),
			"births":     world.Births,
			"deaths":     world.Deaths,
			"population": s.reg.LiveCount(),
		},
	})
}
