package sim

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/feed"
)

func newTestConversations(orc *scriptedOracle, sink *captureSink, seed int64) (*Conversations, *Registry) {
	reg := NewRegistry(testTuning())
	fanout := feed.NewFanout(sink)
	c := NewConversations(reg, orc, fanout, testTuning(), rand.New(rand.NewSource(seed)), testLogger)
	return c, reg
}

func seatPair(reg *Registry) (*agent.Agent, *agent.Agent) {
	a := newVillager("Maren", agent.PlaceCafe)
	b := newVillager("Silas", agent.PlaceCafe)
	reg.Add(a)
	reg.Add(b)
	return a, b
}

func TestConversationLengthAndAlternation(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		orc := newScriptedOracle()
		sink := &captureSink{}
		c, reg := newTestConversations(orc, sink, seed)
		a, b := seatPair(reg)

		rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 7})
		if rec == nil {
			t.Fatalf("seed %d: conversation skipped", seed)
		}
		if n := len(rec.Turns); n < 3 || n > 5 {
			t.Fatalf("seed %d: %d turns, want between 3 and 5", seed, n)
		}
		for i, turn := range rec.Turns {
			want := "Maren"
			if i%2 == 1 {
				want = "Silas"
			}
			if turn.Speaker != want {
				t.Fatalf("seed %d: turn %d spoken by %s, want %s", seed, i, turn.Speaker, want)
			}
		}
		_ = b
	}
}

func TestConversationReleasesBothSpeakers(t *testing.T) {
	orc := newScriptedOracle()
	sink := &captureSink{}
	c, reg := newTestConversations(orc, sink, 1)
	a, b := seatPair(reg)

	rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 7})
	if rec == nil {
		t.Fatal("conversation skipped")
	}
	for _, id := range []string{a.ID, b.ID} {
		got, _ := reg.Get(id)
		if got.Activity != agent.AtPlace(agent.PlaceCafe) {
			t.Errorf("activity = %q, want back at cafe", got.Activity)
		}
	}
}

func TestConversationMidFailureClosesClean(t *testing.T) {
	orc := newScriptedOracle()
	orc.failTurnAt = 1
	sink := &captureSink{}
	c, reg := newTestConversations(orc, sink, 1)
	a, b := seatPair(reg)
	store := &fakeConvoStore{}
	c.SetStore(store)

	rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 7})
	if rec == nil {
		t.Fatal("one spoken turn should still produce a record")
	}
	if len(rec.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(rec.Turns))
	}
	if len(store.saved) != 1 {
		t.Errorf("transcripts saved = %d, want 1", len(store.saved))
	}
	for _, id := range []string{a.ID, b.ID} {
		got, _ := reg.Get(id)
		if got.Activity != agent.AtPlace(agent.PlaceCafe) {
			t.Errorf("activity after failure = %q, want back at cafe", got.Activity)
		}
	}
	ended := sink.byType(feed.EventConversationEnded)
	if len(ended) != 1 {
		t.Errorf("ended events = %d, want 1", len(ended))
	}
}

func TestConversationFirstTurnFailureLeavesNoRecord(t *testing.T) {
	orc := newScriptedOracle()
	orc.failTurnAt = 0
	sink := &captureSink{}
	c, reg := newTestConversations(orc, sink, 1)
	a, b := seatPair(reg)
	store := &fakeConvoStore{}
	c.SetStore(store)

	rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 7})
	if rec != nil {
		t.Fatalf("wordless exchange produced a record: %+v", rec)
	}
	if len(store.saved) != 0 {
		t.Errorf("empty transcript saved")
	}
	got, _ := reg.Get(b.ID)
	if got.Activity != agent.AtPlace(agent.PlaceCafe) {
		t.Errorf("partner stuck in %q", got.Activity)
	}
}

func TestConversationSkipsInvalidPairings(t *testing.T) {
	cases := []struct {
		name    string
		arrange func(reg *Registry, a, b *agent.Agent) (initiator, partner string)
	}{
		{
			name: "unknown partner",
			arrange: func(reg *Registry, a, b *agent.Agent) (string, string) {
				return a.ID, "Nobody"
			},
		},
		{
			name: "self",
			arrange: func(reg *Registry, a, b *agent.Agent) (string, string) {
				return a.ID, a.Name
			},
		},
		{
			name: "partner elsewhere",
			arrange: func(reg *Registry, a, b *agent.Agent) (string, string) {
				reg.Apply(b.ID, Effect{Kind: "move", Place: agent.PlaceLibrary})
				return a.ID, b.Name
			},
		},
		{
			name: "partner busy",
			arrange: func(reg *Registry, a, b *agent.Agent) (string, string) {
				reg.SetActivity(b.ID, agent.ActivitySleeping)
				return a.ID, b.Name
			},
		},
		{
			name: "partner dead",
			arrange: func(reg *Registry, a, b *agent.Agent) (string, string) {
				reg.MarkDead(b.ID, "old age", 1)
				return a.ID, b.Name
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orc := newScriptedOracle()
			sink := &captureSink{}
			c, reg := newTestConversations(orc, sink, 1)
			a, b := seatPair(reg)
			init, partner := tc.arrange(reg, a, b)

			if rec := c.Run(context.Background(), init, partner, WorldState{Tick: 7}); rec != nil {
				t.Fatalf("invalid pairing produced a record: %+v", rec)
			}
			if orc.turnCalls != 0 {
				t.Errorf("oracle consulted %d times for an invalid pairing", orc.turnCalls)
			}
		})
	}
}

func TestConversationFeedsRelationsAndMemories(t *testing.T) {
	orc := newScriptedOracle()
	sink := &captureSink{}
	c, reg := newTestConversations(orc, sink, 1)
	a, b := seatPair(reg)
	graph := &fakeGraph{desc: "old friends"}
	c.SetGraph(graph)

	rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 7})
	if rec == nil {
		t.Fatal("conversation skipped")
	}
	if len(graph.boosts) != 1 {
		t.Fatalf("relation boosts = %v, want one", graph.boosts)
	}

	gotA, _ := reg.Get(a.ID)
	last := gotA.Memories[len(gotA.Memories)-1]
	if !strings.Contains(last.Content, "Silas") {
		t.Errorf("initiator memory = %q, want mention of Silas", last.Content)
	}
	gotB, _ := reg.Get(b.ID)
	last = gotB.Memories[len(gotB.Memories)-1]
	if !strings.Contains(last.Content, "Maren") {
		t.Errorf("partner memory = %q, want mention of Maren", last.Content)
	}

	if lines := sink.byType(feed.EventConversationLine); len(lines) != len(rec.Turns) {
		t.Errorf("line events = %d, want %d", len(lines), len(rec.Turns))
	}
	if started := sink.byType(feed.EventConversationStarted); len(started) != 1 {
		t.Errorf("started events = %d, want 1", len(started))
	}
}

func TestConversationIndexesBothMemories(t *testing.T) {
	orc := newScriptedOracle()
	sink := &captureSink{}
	c, reg := newTestConversations(orc, sink, 1)
	a, _ := seatPair(reg)
	arch := &fakeArchivist{}
	c.SetArchivist(arch)

	if rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 9}); rec == nil {
		t.Fatal("conversation skipped")
	}
	if len(arch.indexed) != 2 {
		t.Fatalf("indexed %d memories, want one per speaker", len(arch.indexed))
	}
	for _, mem := range arch.indexed {
		if !strings.HasPrefix(mem.Content, "Talked with ") {
			t.Errorf("indexed memory = %q, want a conversation memory", mem.Content)
		}
		if mem.Tick != 9 {
			t.Errorf("indexed memory tick = %d, want 9", mem.Tick)
		}
	}
}

func TestConversationFixedSpreadCollapsesToMin(t *testing.T) {
	orc := newScriptedOracle()
	sink := &captureSink{}
	reg := NewRegistry(testTuning())
	tun := testTuning()
	tun.MinTurns = 4
	tun.MaxTurns = 4
	c := NewConversations(reg, orc, feed.NewFanout(sink), tun, rand.New(rand.NewSource(5)), testLogger)
	a, _ := seatPair(reg)

	rec := c.Run(context.Background(), a.ID, "Silas", WorldState{Tick: 2})
	if rec == nil || len(rec.Turns) != 4 {
		t.Fatalf("turns = %v, want exactly 4", rec)
	}
}
