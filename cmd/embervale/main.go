package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/api"
	"github.com/ashgrove/embervale/internal/chronicle"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/embedding"
	"github.com/ashgrove/embervale/internal/feed"
	"github.com/ashgrove/embervale/internal/gateway"
	"github.com/ashgrove/embervale/internal/oracle"
	"github.com/ashgrove/embervale/internal/provider"
	"github.com/ashgrove/embervale/internal/recall"
	"github.com/ashgrove/embervale/internal/relation"
	"github.com/ashgrove/embervale/internal/sim"
	pgstore "github.com/ashgrove/embervale/internal/store"
	"github.com/ashgrove/embervale/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Embervale...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/embervale.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))
	if cfg.Server.LogLevel != "" {
		logger = newLogger(cfg.Server.LogLevel)
	}

	// Oracle: provider router + model-backed cognition
	router := provider.NewRouter(logger)
	model := ""
	var providerIDs []string
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
			continue
		}
		providerIDs = append(providerIDs, pc.ID)
		if model == "" {
			model = pc.Model
		}
	}
	if len(providerIDs) > 1 {
		// Later providers back up the first for every caller.
		router.SetSharedFallbacks(providerIDs[1:])
	}
	llm := oracle.NewLLM(router, model, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	reg := sim.NewRegistry(cfg.Sim.Tuning)
	ring := feed.NewRing(512)
	fanout := feed.NewFanout(ring)

	// Redis: spectator feed stream
	var redisSink *feed.RedisSink
	if cfg.Database.Redis.URL != "" {
		sink, rErr := feed.NewRedisSink(cfg.Database.Redis.URL, feed.DefaultStream, logger)
		if rErr != nil {
			logger.Warn("Redis unavailable, feed stays in memory", zap.Error(rErr))
		} else {
			redisSink = sink
			fanout.Add(sink)
		}
	}

	// PostgreSQL: world, roster, journals, transcripts
	var pg *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pg = ps
		}
	}

	// Neo4j: friendship graph
	var graph *relation.Graph
	if cfg.Database.Neo4j.URI != "" {
		g, nErr := relation.New(context.Background(), cfg.Database.Neo4j.URI,
			cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if nErr != nil {
			logger.Warn("Neo4j unavailable, running without relations", zap.Error(nErr))
		} else {
			graph = g
		}
	}

	// Qdrant + embeddings: semantic memory archive
	var archive *recall.Archive
	var qdrant *vectorstore.Client
	if cfg.Database.Qdrant.Host != "" {
		qc, qErr := vectorstore.NewClient(vectorstore.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qErr != nil {
			logger.Warn("Qdrant unavailable, running without recall", zap.Error(qErr))
		} else {
			embedder, eErr := embedding.New(embedding.Config{
				Provider:  cfg.Embedding.Provider,
				Endpoint:  cfg.Embedding.Endpoint,
				Model:     cfg.Embedding.Model,
				APIKey:    cfg.Embedding.APIKey,
				Dimension: cfg.Embedding.Dimension,
			})
			if eErr != nil {
				logger.Warn("embedding misconfigured, running without recall", zap.Error(eErr))
				qc.Close()
			} else {
				a := recall.New(embedder, qc, logger)
				if pg != nil {
					a.SetDurableLog(pg)
				}
				if iErr := a.Init(context.Background()); iErr != nil {
					logger.Warn("recall collection not ready, running without recall", zap.Error(iErr))
					qc.Close()
				} else {
					archive = a
					qdrant = qc
					logger.Info("Memory archive ready")
				}
			}
		}
	}

	// Chat platforms: milestone announcements
	herald := gateway.NewHerald(logger)
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		d, dErr := gateway.NewDiscordAnnouncer(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.ChannelID, logger)
		if dErr != nil {
			logger.Warn("Discord announcer unavailable", zap.Error(dErr))
		} else {
			herald.Register(d)
		}
	}
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		herald.Register(gateway.NewSlackAnnouncer(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.Channel, logger))
	}
	if len(herald.Platforms()) > 0 {
		fanout.Add(herald)
	}

	// Simulation core
	convos := sim.NewConversations(reg, llm, fanout, cfg.Sim.Tuning, rng, logger)
	pipe := sim.NewPipeline(reg, llm, convos, fanout, cfg.Sim.Tuning, logger)
	rules := sim.NewRules(cfg.Sim.Tuning, rng)
	gen := agent.NewGenerator(llm, rng, logger)
	clock := sim.NewClock(cfg.Sim.Tuning)
	sched := sim.NewScheduler(cfg.Sim, clock, reg, rules, pipe, gen, fanout, rng, logger)

	chronicler := chronicle.New(llm, logger)
	sched.SetChronicler(chronicler)

	if graph != nil {
		convos.SetGraph(graph)
		sched.SetRelations(graph)
	}
	if pg != nil {
		convos.SetStore(pg)
		pipe.SetJournal(pg)
		sched.SetPersistence(pg)
		chronicler.SetStore(pg)
	}
	if archive != nil {
		convos.SetArchivist(archive)
		pipe.SetArchivist(archive)
	}

	if err := sched.Bootstrap(context.Background()); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	sched.Start()
	logger.Info("Embervale is awake")

	// HTTP surface
	handler := api.NewHandler(sched, reg, ring, logger)
	if pg != nil {
		handler.SetStore(pg)
	}
	if graph != nil {
		handler.SetGraph(graph)
	}
	if archive != nil {
		handler.SetArchive(archive)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Embervale listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Embervale...")
	sched.Stop()
	ctx := context.Background()
	srv.Shutdown(ctx)
	herald.Close()
	if graph != nil {
		graph.Close(ctx)
	}
	if qdrant != nil {
		qdrant.Close()
	}
	if redisSink != nil {
		redisSink.Close()
	}
	if pg != nil {
		pg.Close()
	}
}

// newLogger builds the process logger. "production" gets JSON output;
// anything else stays on the development console encoder.
func newLogger(level string) *zap.Logger {
	if level == "production" {
		l, _ := zap.NewProduction()
		return l
	}
	l, _ := zap.NewDevelopment()
	return l
}
