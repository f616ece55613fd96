// Package relation tracks who knows whom, backed by Neo4j. Ties strengthen
// with every conversation and fade a little each day they go untended.
package relation

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Tie is one villager's view of a relationship.
type Tie struct {
	Name          string  `json:"name"`
	Strength      float64 `json:"strength"` // 0-1
	Conversations int     `json:"conversations"`
}

// Graph manages the village's social ties in Neo4j.
type Graph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New connects to Neo4j and verifies the connection.
func New(ctx context.Context, uri, user, password string, logger *zap.Logger) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	logger.Info("Neo4j connected")
	return &Graph{driver: driver, logger: logger}, nil
}

// Close shuts down the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// RecordConversation strengthens the tie between two villagers. Ties are
// undirected; either party's name order hits the same edge. Strength caps
// at 1.0.
func (g *Graph) RecordConversation(ctx context.Context, aName, bName string, boost float64, tick int) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Villager {name: $a})
		 MERGE (b:Villager {name: $b})
		 MERGE (a)-[r:KNOWS]-(b)
		 ON CREATE SET r.strength = $boost, r.conversations = 1,
		               r.since_tick = $tick, r.updated_at = datetime()
		 ON MATCH SET r.strength = CASE WHEN r.strength + $boost > 1.0 THEN 1.0 ELSE r.strength + $boost END,
		              r.conversations = r.conversations + 1,
		              r.updated_at = datetime()`,
		map[string]interface{}{
			"a":     aName,
			"b":     bName,
			"boost": boost,
			"tick":  tick,
		})
	if err != nil {
		return fmt.Errorf("record conversation: %w", err)
	}
	return nil
}

// Describe returns a short phrase for the pair's shared history, or "" when
// the two have never spoken.
func (g *Graph) Describe(ctx context.Context, aName, bName string) (string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Villager {name: $a})-[r:KNOWS]-(b:Villager {name: $b})
		 RETURN r.strength AS strength, r.conversations AS conversations`,
		map[string]interface{}{"a": aName, "b": bName})
	if err != nil {
		return "", fmt.Errorf("describe relation: %w", err)
	}
	if !result.Next(ctx) {
		return "", nil
	}
	rec := result.Record()
	strength, _ := rec.Get("strength")
	count, _ := rec.Get("conversations")

	s, _ := strength.(float64)
	n, _ := count.(int64)
	return fmt.Sprintf("%s, %d conversations so far", strengthBand(s), n), nil
}

// TiesOf returns every tie a villager holds, strongest first.
func (g *Graph) TiesOf(ctx context.Context, name string) ([]Tie, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Villager {name: $name})-[r:KNOWS]-(b:Villager)
		 RETURN b.name AS other, r.strength AS strength, r.conversations AS conversations
		 ORDER BY r.strength DESC`,
		map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("list ties: %w", err)
	}

	var ties []Tie
	for result.Next(ctx) {
		rec := result.Record()
		other, _ := rec.Get("other")
		strength, _ := rec.Get("strength")
		count, _ := rec.Get("conversations")

		t := Tie{}
		t.Name, _ = other.(string)
		t.Strength, _ = strength.(float64)
		if n, ok := count.(int64); ok {
			t.Conversations = int(n)
		}
		ties = append(ties, t)
	}
	return ties, result.Err()
}

// DecayDaily fades every tie by the given amount, flooring at zero.
func (g *Graph) DecayDaily(ctx context.Context, decay float64) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH ()-[r:KNOWS]->()
		 WHERE r.strength > 0
		 SET r.strength = CASE WHEN r.strength - $decay < 0 THEN 0 ELSE r.strength - $decay END`,
		map[string]interface{}{"decay": decay})
	if err != nil {
		return fmt.Errorf("decay ties: %w", err)
	}
	return nil
}

// strengthBand maps a tie strength onto words a prompt can use.
func strengthBand(s float64) string {
	switch {
	case s < 0.2:
		return "barely acquainted"
	case s < 0.5:
		return "friendly acquaintances"
	case s < 0.8:
		return "good friends"
	default:
		return "old friends"
	}
}
