package visual

import "sort"

// CardSignal is the per-card state the renderer reflects.
type CardSignal struct {
	Pulsing     bool    `json:"pulsing"`
	PulsePeriod float64 `json:"pulse_period"`
	Open        bool    `json:"open"`
}

// Snapshot is the full advisory output. Cards that are neither pulsing nor
// open are omitted.
type Snapshot struct {
	Cards             map[string]CardSignal `json:"cards"`
	GlowColor         string                `json:"glow_color"`
	GlowPeriod        float64               `json:"glow_period"`
	NowPlaying        string                `json:"now_playing"`
	NowPlayingVisible bool                  `json:"now_playing_visible"`
	NowPlayingCover   string                `json:"now_playing_cover,omitempty"`
	GatePrompt        bool                  `json:"gate_prompt"`
}

// Publisher receives output updates.
type Publisher interface {
	PublishVisual(s Snapshot)
	PublishGain(gain float64)
}

// Publishers fans updates out to several publishers.
type Publishers []Publisher

func (ps Publishers) PublishVisual(s Snapshot) {
	for _, p := range ps {
		p.PublishVisual(s)
	}
}

func (ps Publishers) PublishGain(gain float64) {
	for _, p := range ps {
		p.PublishGain(gain)
	}
}

// Board holds the published visual state. Writers mark it dirty; Flush
// publishes one snapshot per batch of changes. Not safe for concurrent use.
type Board struct {
	cards       map[string]CardSignal
	glowColor   string
	glowPeriod  float64
	nowPlaying  string
	cover       string
	visible     bool
	gatePrompt  bool
	promptShown bool

	dirty bool
	pub   Publisher
}

// NewBoard creates an idle board.
func NewBoard(pub Publisher) *Board {
	return &Board{
		cards:      make(map[string]CardSignal),
		glowColor:  DefaultColor,
		glowPeriod: PulsePeriod(DefaultTempo),
		pub:        pub,
	}
}

// SetPublisher replaces the publisher.
func (b *Board) SetPublisher(pub Publisher) {
	b.pub = pub
}

func (b *Board) update(card string, fn func(*CardSignal)) {
	if card == "" {
		return
	}
	c := b.cards[card]
	before := c
	fn(&c)
	if c == before {
		return
	}
	if !c.Pulsing && !c.Open {
		delete(b.cards, card)
	} else {
		b.cards[card] = c
	}
	b.dirty = true
}

// SetPulsing turns a card's pulse on with the given period, or off.
func (b *Board) SetPulsing(card string, on bool, period float64) {
	b.update(card, func(c *CardSignal) {
		c.Pulsing = on
		if on {
			c.PulsePeriod = period
		} else {
			c.PulsePeriod = 0
		}
	})
}

// Pulsing reports whether card is pulsing.
func (b *Board) Pulsing(card string) bool {
	return b.cards[card].Pulsing
}

// ClearPulsing stops every card's pulse.
func (b *Board) ClearPulsing() {
	for card := range b.cards {
		b.SetPulsing(card, false, 0)
	}
}

// SetOpen opens or closes a card's tracklist panel.
func (b *Board) SetOpen(card string, open bool) {
	b.update(card, func(c *CardSignal) { c.Open = open })
}

// IsOpen reports whether card's panel is open.
func (b *Board) IsOpen(card string) bool {
	return b.cards[card].Open
}

// OpenCards lists cards with an open panel, sorted.
func (b *Board) OpenCards() []string {
	var open []string
	for card, c := range b.cards {
		if c.Open {
			open = append(open, card)
		}
	}
	sort.Strings(open)
	return open
}

// SetGlow sets the global glow color and period.
func (b *Board) SetGlow(color string, period float64) {
	if color == b.glowColor && period == b.glowPeriod {
		return
	}
	b.glowColor = color
	b.glowPeriod = period
	b.dirty = true
}

// SetNowPlaying sets the label and the indicator visibility.
func (b *Board) SetNowPlaying(text string, visible bool) {
	if text == b.nowPlaying && visible == b.visible {
		return
	}
	b.nowPlaying = text
	b.visible = visible
	b.dirty = true
}

// Apply shows sig: the card pulses and the glow and label follow it.
func (b *Board) Apply(sig Signal) {
	b.SetPulsing(sig.Card, true, sig.Period)
	b.SetGlow(sig.Color, sig.Period)
	b.SetNowPlaying(sig.NowPlaying, sig.NowPlaying != "")
	if sig.Cover != b.cover {
		b.cover = sig.Cover
		b.dirty = true
	}
}

// ClearPlayback removes every playback signal, keeping open panels.
func (b *Board) ClearPlayback() {
	b.ClearPulsing()
	b.SetNowPlaying(b.nowPlaying, false)
}

// ShowGatePrompt raises the gesture prompt the first time it is called and
// reports whether it did.
func (b *Board) ShowGatePrompt() bool {
	if b.promptShown {
		return false
	}
	b.promptShown = true
	b.gatePrompt = true
	b.dirty = true
	return true
}

// HideGatePrompt removes the prompt.
func (b *Board) HideGatePrompt() {
	if !b.gatePrompt {
		return
	}
	b.gatePrompt = false
	b.dirty = true
}

// Snapshot copies the current state.
func (b *Board) Snapshot() Snapshot {
	cards := make(map[string]CardSignal, len(b.cards))
	for k, v := range b.cards {
		cards[k] = v
	}
	return Snapshot{
		Cards:             cards,
		GlowColor:         b.glowColor,
		GlowPeriod:        b.glowPeriod,
		NowPlaying:        b.nowPlaying,
		NowPlayingVisible: b.visible,
		NowPlayingCover:   b.cover,
		GatePrompt:        b.gatePrompt,
	}
}

// Flush publishes a snapshot if anything changed since the last flush.
func (b *Board) Flush() {
	if !b.dirty {
		return
	}
	b.dirty = false
	if b.pub != nil {
		b.pub.PublishVisual(b.Snapshot())
	}
}

// PublishGain forwards a gain sample to the publisher.
func (b *Board) PublishGain(gain float64) {
	if b.pub != nil {
		b.pub.PublishGain(gain)
	}
}
