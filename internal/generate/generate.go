// Package generate produces synthetic ServerEye events for demos, the
// mock upstream and tests.
package generate

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/format"
)

const (
	// PatternSteady spreads events evenly over the duration.
	PatternSteady = "steady"
	// PatternBurst generates clustered bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp makes events denser towards the end of the duration.
	PatternRamp = "ramp"
)

// Options controls how synthetic events are generated.
type Options struct {
	Count    int
	Players  int
	Duration time.Duration
	Pattern  string
	Start    time.Time
	Seed     int64
	Types    []string

	// AnonymousRatio is the share of events generated without a player.
	AnonymousRatio float64
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		Count:          100,
		Players:        5,
		Duration:       2 * time.Hour,
		Pattern:        PatternSteady,
		AnonymousRatio: 0.05,
	}
}

// Events creates synthetic event records, oldest first.
func Events(opts Options) ([]event.Record, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Players <= 0 {
		return nil, fmt.Errorf("players must be positive, got %d", opts.Players)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.AnonymousRatio < 0 || opts.AnonymousRatio > 1 {
		return nil, fmt.Errorf("anonymous ratio must be within [0,1], got %g", opts.AnonymousRatio)
	}

	if opts.Pattern == "" {
		opts.Pattern = PatternSteady
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().Add(-opts.Duration).Truncate(time.Second)
	}
	if len(opts.Types) == 0 {
		opts.Types = event.KnownTypes
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	g := &generator{
		rng:     rand.New(rand.NewSource(opts.Seed)),
		opts:    opts,
		players: makePlayers(opts.Players),
	}

	var times []time.Time
	switch opts.Pattern {
	case PatternBurst:
		times = g.burst()
	case PatternRamp:
		times = g.ramp()
	default: // steady and unknown patterns default to steady behavior.
		times = g.steady()
	}

	records := make([]event.Record, len(times))
	for i, t := range times {
		records[i] = g.record(t)
	}
	return records, nil
}

var playerNames = []string{"Steve", "Alex", "notch_fan", "CreeperHunter", "xX_Miner_Xx", "lucky7", "RedstoneRita", "PixelPanda"}

func makePlayers(n int) []string {
	players := make([]string, n)
	for i := range players {
		name := playerNames[i%len(playerNames)]
		if i >= len(playerNames) {
			name += strconv.Itoa(i / len(playerNames))
		}
		players[i] = name
	}
	return players
}

type generator struct {
	rng     *rand.Rand
	opts    Options
	players []string
}

func (g *generator) steady() []time.Time {
	interval := g.opts.Duration / time.Duration(g.opts.Count)
	times := make([]time.Time, g.opts.Count)
	for i := range times {
		times[i] = g.opts.Start.Add(time.Duration(i) * interval)
	}
	return times
}

func (g *generator) burst() []time.Time {
	times := make([]time.Time, 0, g.opts.Count)
	numBursts := 4
	burstSize := g.opts.Count / numBursts
	burstGap := g.opts.Duration / time.Duration(numBursts)

	for b := 0; b < numBursts; b++ {
		burstStart := g.opts.Start.Add(time.Duration(b) * burstGap)
		for i := 0; i < burstSize; i++ {
			offset := time.Duration(g.rng.Intn(60)) * time.Second
			times = append(times, burstStart.Add(offset))
		}
	}
	for len(times) < g.opts.Count {
		times = append(times, g.opts.Start.Add(time.Duration(g.rng.Int63n(int64(g.opts.Duration)))))
	}
	return times
}

func (g *generator) ramp() []time.Time {
	times := make([]time.Time, g.opts.Count)
	for i := range times {
		frac := float64(i) / float64(g.opts.Count)
		times[i] = g.opts.Start.Add(time.Duration(frac * frac * float64(g.opts.Duration)))
	}
	return times
}

var (
	worlds    = []string{"world", "world_nether", "world_the_end"}
	blocks    = []string{"minecraft:stone", "minecraft:oak_log", "minecraft:diamond_ore", "minecraft:dirt", "minecraft:glass"}
	gamemodes = []string{"SURVIVAL", "CREATIVE", "ADVENTURE", "SPECTATOR"}
	commands  = []string{"/home", "/spawn", "/tp Alex", "/give @p diamond 3", "/weather clear"}
	chats     = []string{"hello everyone", "anyone up for the nether?", "gg", "where is spawn", "selling diamonds\nDM me"}
	languages = []string{"en_us", "zh_cn", "de_de"}
	reasons   = []string{"quit", "timeout", "kicked"}
)

func (g *generator) pick(s []string) string {
	return s[g.rng.Intn(len(s))]
}

func (g *generator) record(t time.Time) event.Record {
	typ := g.pick(g.opts.Types)
	r := event.Record{
		Type:      typ,
		Timestamp: t.UTC().Format(time.RFC3339),
		Time:      t.UTC(),
		TimeValid: true,
		Details:   g.details(typ, t),
	}
	if g.rng.Float64() >= g.opts.AnonymousRatio {
		p := g.pick(g.players)
		r.Player = &p
	}
	return r
}

func (g *generator) details(typ string, t time.Time) event.Value {
	switch typ {
	case event.TypePlayerJoin:
		id, _ := uuid.NewRandomFromReader(g.rng)
		return event.Object(
			event.F("uuid", event.String(id.String())),
			event.F("ip", event.String(fmt.Sprintf("10.0.%d.%d", g.rng.Intn(256), g.rng.Intn(256)))),
			event.F("world", event.String(g.pick(worlds))),
		)
	case event.TypePlayerLeave:
		return event.Object(
			event.F("reason", event.String(g.pick(reasons))),
			event.F("session_minutes", event.Int(int64(g.rng.Intn(240)))),
		)
	case event.TypeBlockBreak, event.TypeBlockPlace:
		return event.Object(
			event.F("block_type", event.String(g.pick(blocks))),
			event.F("world", event.String(g.pick(worlds))),
			event.F("location", event.Object(
				event.F("x", event.Int(int64(g.rng.Intn(2000)-1000))),
				event.F("y", event.Int(int64(g.rng.Intn(128)))),
				event.F("z", event.Int(int64(g.rng.Intn(2000)-1000))),
			)),
			event.F("tool", event.String("minecraft:diamond_pickaxe")),
		)
	case event.TypeChatMessage:
		msg := g.pick(chats)
		history := make([]event.Value, 0, 2)
		for i := 0; i < 1+g.rng.Intn(2); i++ {
			lang := g.pick(languages)
			client := msg
			if lang != "en_us" {
				client = "[" + lang + "] " + msg
			}
			history = append(history, event.Object(
				event.F(format.ChatSourceKey, event.String(msg)),
				event.F(format.ChatLanguageKey, event.String(lang)),
				event.F(format.ChatClientKey, event.String(client)),
				event.F(format.ChatTimeKey, event.Int(t.UnixMilli())),
			))
		}
		return event.Object(
			event.F("message", event.String(msg)),
			event.F("chat_history", event.Array(history...)),
		)
	case event.TypeGamemodeChange:
		return event.Object(
			event.F("old_gamemode", event.String(g.pick(gamemodes))),
			event.F("new_gamemode", event.String(g.pick(gamemodes))),
		)
	case event.TypeCommandExecution:
		return event.Object(
			event.F("command", event.String(g.pick(commands))),
			event.F("success", event.Bool(g.rng.Intn(5) != 0)),
		)
	default:
		return event.Value{}
	}
}
