package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Database  DatabaseConfig   `json:"database"`
	Embedding EmbeddingConfig  `json:"embedding"`
	Gateway   GatewayConfig    `json:"gateway"`
	Sim       SimConfig        `json:"sim"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

type GatewayConfig struct {
	Discord DiscordGatewayConfig `json:"discord"`
	Slack   SlackGatewayConfig   `json:"slack"`
}

type DiscordGatewayConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// SimConfig groups the scheduler cadences with the world tuning table.
type SimConfig struct {
	TickInterval  Duration `json:"tick_interval"`  // wall-clock time between ticks
	FlushInterval int      `json:"flush_interval"` // persist every N ticks
	SeedRoster    int      `json:"seed_roster"`    // villagers created on a fresh world
	Tuning        Tuning   `json:"tuning"`
}

// Tuning holds every rebalanceable constant of the simulation. The village
// has been retuned more than once to keep it from starving out, so deltas and
// thresholds load from config rather than living in code.
type Tuning struct {
	// Clock.
	MinutesPerTick     int     `json:"minutes_per_tick"`
	YearLength         int     `json:"year_length"` // days per year, four equal seasons
	NightStartHour     int     `json:"night_start_hour"`
	NightEndHour       int     `json:"night_end_hour"`
	WeatherShiftChance float64 `json:"weather_shift_chance"` // rolled once per day

	// Vitals decay.
	HungerPerTick float64 `json:"hunger_per_tick"`
	NightDrain    float64 `json:"night_drain"` // energy lost awake at night
	DayDrain      float64 `json:"day_drain"`   // energy lost awake by day
	SleepRecovery float64 `json:"sleep_recovery"`
	HealthRegen   float64 `json:"health_regen"`
	HealthDecay   float64 `json:"health_decay"`
	MoodLift      float64 `json:"mood_lift"`

	// Vitals thresholds.
	HungerComfort   float64 `json:"hunger_comfort"`
	EnergyComfort   float64 `json:"energy_comfort"`
	HungerDanger    float64 `json:"hunger_danger"`
	EnergyDanger    float64 `json:"energy_danger"`
	AutoSleepEnergy float64 `json:"auto_sleep_energy"`
	WakeEnergy      float64 `json:"wake_energy"`

	// Mood lifts only when all three vitals sit inside these ranges.
	MoodHungerMax float64 `json:"mood_hunger_max"`
	MoodEnergyMin float64 `json:"mood_energy_min"`
	MoodHealthMin float64 `json:"mood_health_min"`

	// Eating.
	EatNourishment float64 `json:"eat_nourishment"`
	EatHealthBonus float64 `json:"eat_health_bonus"`
	EatEffort      float64 `json:"eat_effort"`
	EatMoodLift    float64 `json:"eat_mood_lift"`

	// Lifecycle.
	AgeThreshold int     `json:"age_threshold"` // ticks before old age can claim a villager
	OldAgeHazard float64 `json:"old_age_hazard"`
	HardCap      int     `json:"hard_cap"`
	SoftCap      int     `json:"soft_cap"`
	SpawnChance  float64 `json:"spawn_chance"`
	FlavorChance float64 `json:"flavor_chance"`

	// Decision pipeline.
	DecisionsPerTick int      `json:"decisions_per_tick"`
	InterCallDelay   Duration `json:"inter_call_delay"`
	OracleTimeout    Duration `json:"oracle_timeout"`

	// Conversations.
	MinTurns          int      `json:"min_turns"`
	MaxTurns          int      `json:"max_turns"`
	TurnDelay         Duration `json:"turn_delay"`
	ConversationBoost float64  `json:"conversation_boost"`
	RelationDecay     float64  `json:"relation_decay"` // strength lost per day

	// Chronicle.
	ChronicleInterval int `json:"chronicle_interval"`
}

// DefaultSim returns the reference cadences and tuning table.
func DefaultSim() SimConfig {
	return SimConfig{
		TickInterval:  Duration(60 * time.Second),
		FlushInterval: 5,
		SeedRoster:    6,
		Tuning:        DefaultTuning(),
	}
}

// DefaultTuning returns the balance the village currently survives on.
func DefaultTuning() Tuning {
	return Tuning{
		MinutesPerTick:     30,
		YearLength:         40,
		NightStartHour:     22,
		NightEndHour:       6,
		WeatherShiftChance: 0.20,

		HungerPerTick: 5,
		NightDrain:    4,
		DayDrain:      1,
		SleepRecovery: 8,
		HealthRegen:   2,
		HealthDecay:   3,
		MoodLift:      1,

		HungerComfort:   30,
		EnergyComfort:   70,
		HungerDanger:    90,
		EnergyDanger:    10,
		AutoSleepEnergy: 15,
		WakeEnergy:      85,

		MoodHungerMax: 50,
		MoodEnergyMin: 40,
		MoodHealthMin: 60,

		EatNourishment: 30,
		EatHealthBonus: 2,
		EatEffort:      2,
		EatMoodLift:    3,

		AgeThreshold: 300,
		OldAgeHazard: 0.002,
		HardCap:      10,
		SoftCap:      8,
		SpawnChance:  0.05,
		FlavorChance: 0.05,

		DecisionsPerTick: 1,
		InterCallDelay:   Duration(time.Second),
		OracleTimeout:    Duration(30 * time.Second),

		MinTurns:          3,
		MaxTurns:          5,
		TurnDelay:         Duration(500 * time.Millisecond),
		ConversationBoost: 0.1,
		RelationDecay:     0.005,

		ChronicleInterval: 20,
	}
}

// Duration is a time.Duration that unmarshals from strings like "60s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
	return nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable
// references. Sim fields left at zero are backfilled from the defaults, so a
// config only needs to name the knobs it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Sim.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults backfills zero-valued cadences and tuning knobs.
func (s *SimConfig) ApplyDefaults() {
	def := DefaultSim()
	if s.TickInterval == 0 {
		s.TickInterval = def.TickInterval
	}
	if s.FlushInterval == 0 {
		s.FlushInterval = def.FlushInterval
	}
	if s.SeedRoster == 0 {
		s.SeedRoster = def.SeedRoster
	}
	s.Tuning.ApplyDefaults()
}

// ApplyDefaults backfills zero-valued tuning knobs from DefaultTuning.
func (t *Tuning) ApplyDefaults() {
	def := DefaultTuning()
	if t.MinutesPerTick == 0 {
		t.MinutesPerTick = def.MinutesPerTick
	}
	if t.YearLength == 0 {
		t.YearLength = def.YearLength
	}
	if t.NightStartHour == 0 {
		t.NightStartHour = def.NightStartHour
	}
	if t.NightEndHour == 0 {
		t.NightEndHour = def.NightEndHour
	}
	if t.WeatherShiftChance == 0 {
		t.WeatherShiftChance = def.WeatherShiftChance
	}
	if t.HungerPerTick == 0 {
		t.HungerPerTick = def.HungerPerTick
	}
	if t.NightDrain == 0 {
		t.NightDrain = def.NightDrain
	}
	if t.DayDrain == 0 {
		t.DayDrain = def.DayDrain
	}
	if t.SleepRecovery == 0 {
		t.SleepRecovery = def.SleepRecovery
	}
	if t.HealthRegen == 0 {
		t.HealthRegen = def.HealthRegen
	}
	if t.HealthDecay == 0 {
		t.HealthDecay = def.HealthDecay
	}
	if t.MoodLift == 0 {
		t.MoodLift = def.MoodLift
	}
	if t.HungerComfort == 0 {
		t.HungerComfort = def.HungerComfort
	}
	if t.EnergyComfort == 0 {
		t.EnergyComfort = def.EnergyComfort
	}
	if t.HungerDanger == 0 {
		t.HungerDanger = def.HungerDanger
	}
	if t.EnergyDanger == 0 {
		t.EnergyDanger = def.EnergyDanger
	}
	if t.AutoSleepEnergy == 0 {
		t.AutoSleepEnergy = def.AutoSleepEnergy
	}
	if t.WakeEnergy == 0 {
		t.WakeEnergy = def.WakeEnergy
	}
	if t.MoodHungerMax == 0 {
		t.MoodHungerMax = def.MoodHungerMax
	}
	if t.MoodEnergyMin == 0 {
		t.MoodEnergyMin = def.MoodEnergyMin
	}
	if t.MoodHealthMin == 0 {
		t.MoodHealthMin = def.MoodHealthMin
	}
	if t.EatNourishment == 0 {
		t.EatNourishment = def.EatNourishment
	}
	if t.EatHealthBonus == 0 {
		t.EatHealthBonus = def.EatHealthBonus
	}
	if t.EatEffort == 0 {
		t.EatEffort = def.EatEffort
	}
	if t.EatMoodLift == 0 {
		t.EatMoodLift = def.EatMoodLift
	}
	if t.AgeThreshold == 0 {
		t.AgeThreshold = def.AgeThreshold
	}
	if t.OldAgeHazard == 0 {
		t.OldAgeHazard = def.OldAgeHazard
	}
	if t.HardCap == 0 {
		t.HardCap = def.HardCap
	}
	if t.SoftCap == 0 {
		t.SoftCap = def.SoftCap
	}
	if t.SpawnChance == 0 {
		t.SpawnChance = def.SpawnChance
	}
	if t.FlavorChance == 0 {
		t.FlavorChance = def.FlavorChance
	}
	if t.DecisionsPerTick == 0 {
		t.DecisionsPerTick = def.DecisionsPerTick
	}
	if t.InterCallDelay == 0 {
		t.InterCallDelay = def.InterCallDelay
	}
	if t.OracleTimeout == 0 {
		t.OracleTimeout = def.OracleTimeout
	}
	if t.MinTurns == 0 {
		t.MinTurns = def.MinTurns
	}
	if t.MaxTurns == 0 {
		t.MaxTurns = def.MaxTurns
	}
	if t.TurnDelay == 0 {
		t.TurnDelay = def.TurnDelay
	}
	if t.ConversationBoost == 0 {
		t.ConversationBoost = def.ConversationBoost
	}
	if t.RelationDecay == 0 {
		t.RelationDecay = def.RelationDecay
	}
	if t.ChronicleInterval == 0 {
		t.ChronicleInterval = def.ChronicleInterval
	}
}
