// Package sim holds the simulation core: the world clock, the villager
// registry, the lifecycle rule tables, the decision pipeline, the
// conversation orchestrator, and the tick scheduler that drives them.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/ashgrove/embervale/internal/config"
)

// Season is one quarter of the village year.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// Weather is the current sky over Embervale.
type Weather string

const (
	WeatherSunny  Weather = "sunny"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
	WeatherWindy  Weather = "windy"
	WeatherFoggy  Weather = "foggy"
	WeatherStormy Weather = "stormy"
	WeatherSnowy  Weather = "snowy"
)

// WeatherPalette is the pool the daily redraw picks from.
var WeatherPalette = []Weather{
	WeatherSunny, WeatherCloudy, WeatherRainy, WeatherWindy,
	WeatherFoggy, WeatherStormy, WeatherSnowy,
}

// WorldState is the shared simulated date, sky, and lifetime counters. It
// serializes round-trip exact: a reloaded state reproduces the same day,
// time, season, weather, and counters.
type WorldState struct {
	Tick        int     `json:"tick"`
	Day         int     `json:"day"`
	MinuteOfDay int     `json:"minute_of_day"`
	Season      Season  `json:"season"`
	Weather     Weather `json:"weather"`
	Births      int     `json:"births"`
	Deaths      int     `json:"deaths"`
}

// TimeOfDay renders the minute counter as "HH:MM".
func (w WorldState) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", w.MinuteOfDay/60, w.MinuteOfDay%60)
}

// Clock advances the world's simulated time. It is a pure state transition
// with no locking of its own; the scheduler serializes access.
type Clock struct {
	state WorldState
	tun   config.Tuning
}

// NewClock starts a fresh world on the morning of day one.
func NewClock(tun config.Tuning) *Clock {
	return &Clock{
		state: WorldState{
			Day:         1,
			MinuteOfDay: 8 * 60,
			Season:      seasonFor(1, tun.YearLength),
			Weather:     WeatherSunny,
		},
		tun: tun,
	}
}

// Restore replaces the clock state with a previously saved one.
func (c *Clock) Restore(ws WorldState) {
	c.state = ws
}

// State returns a copy of the current world state.
func (c *Clock) State() WorldState {
	return c.state
}

// Advance adds the per-tick minutes to the time of day. Crossing midnight
// rolls the day, rederives the season, and may redraw the weather. It
// returns true when a new day began.
func (c *Clock) Advance(rng *rand.Rand) bool {
	c.state.Tick++
	c.state.MinuteOfDay += c.tun.MinutesPerTick
	if c.state.MinuteOfDay < 24*60 {
		return false
	}

	c.state.MinuteOfDay -= 24 * 60
	c.state.Day++
	c.state.Season = seasonFor(c.state.Day, c.tun.YearLength)
	if rng.Float64() < c.tun.WeatherShiftChance {
		c.state.Weather = WeatherPalette[rng.Intn(len(WeatherPalette))]
	}
	return true
}

// IsNighttime reports whether the current hour falls inside the night range,
// which wraps midnight with the default 22:00-06:00 bounds.
func (c *Clock) IsNighttime() bool {
	hour := c.state.MinuteOfDay / 60
	if c.tun.NightStartHour > c.tun.NightEndHour {
		return hour >= c.tun.NightStartHour || hour < c.tun.NightEndHour
	}
	return hour >= c.tun.NightStartHour && hour < c.tun.NightEndHour
}

// RecordBirth bumps the lifetime birth counter.
func (c *Clock) RecordBirth() {
	c.state.Births++
}

// RecordDeaths bumps the lifetime death counter by n.
func (c *Clock) RecordDeaths(n int) {
	c.state.Deaths += n
}

// seasonFor derives the season from the day of year, in four equal bins.
func seasonFor(day, yearLength int) Season {
	if yearLength <= 0 {
		yearLength = 40
	}
	dayOfYear := ((day-1)%yearLength + yearLength) % yearLength
	switch {
	case dayOfYear < yearLength/4:
		return SeasonSpring
	case dayOfYear < yearLength/2:
		return SeasonSummer
	case dayOfYear < 3*yearLength/4:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}
