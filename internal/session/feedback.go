package session

import (
	"strings"
	"sync"
)

// CueKind separates the independent cue channels: rep-count announcements and
// form-correction text never suppress each other.
type CueKind int

const (
	CueRepCount CueKind = iota
	CueForm
	numCueKinds
)

// Cue is one audible/visual announcement.
type Cue struct {
	Kind CueKind
	Text string
	Seq  uint64
}

// Speaker renders cues. Implementations are expected to stop the named
// channel's current playback on Interrupt before the replacement plays.
type Speaker interface {
	Speak(c Cue)
	Interrupt(kind CueKind)
}

// CueChannel turns accepted analysis results into at most one live cue per
// kind. It is last-write-wins, never a queue: emitting a cue cancels whatever
// the kind was previously playing. Cues are suppressed entirely while the
// session is not active or when the text denotes an error condition.
type CueChannel struct {
	mu      sync.Mutex
	speaker Speaker
	active  bool
	seq     uint64
	current [numCueKinds]*Cue
}

// NewCueChannel creates an inactive channel. speaker may be nil (cues are
// still tracked, useful for UI polling and tests).
func NewCueChannel(speaker Speaker) *CueChannel {
	return &CueChannel{speaker: speaker}
}

// SetActive gates emission. The controller flips this on the
// CountingDown → Active and Active → terminal transitions.
func (ch *CueChannel) SetActive(active bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.active = active
}

// Emit replaces the kind's current cue with text. Suppressed while inactive
// or when the text denotes an error.
func (ch *CueChannel) Emit(kind CueKind, text string) {
	if kind < 0 || kind >= numCueKinds {
		return
	}
	ch.mu.Lock()
	if !ch.active || isErrorText(text) {
		ch.mu.Unlock()
		return
	}
	ch.seq++
	cue := &Cue{Kind: kind, Text: text, Seq: ch.seq}
	replaced := ch.current[kind] != nil
	ch.current[kind] = cue
	speaker := ch.speaker
	ch.mu.Unlock()

	if speaker != nil {
		if replaced {
			speaker.Interrupt(kind)
		}
		speaker.Speak(*cue)
	}
}

// Current returns the kind's live cue, if any.
func (ch *CueChannel) Current(kind CueKind) (Cue, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if kind < 0 || kind >= numCueKinds || ch.current[kind] == nil {
		return Cue{}, false
	}
	return *ch.current[kind], true
}

// isErrorText matches the analysis service's error-shaped feedback strings,
// which are displayed but never announced.
func isErrorText(s string) bool {
	return strings.Contains(s, "Error") ||
		strings.Contains(s, "error") ||
		strings.Contains(s, "Could not")
}
