package session

import (
	"sync"
	"testing"
)

// recordingSpeaker captures spoken cues and interrupts for assertions.
type recordingSpeaker struct {
	mu         sync.Mutex
	spoken     []Cue
	interrupts []CueKind
}

func (s *recordingSpeaker) Speak(c Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, c)
}

func (s *recordingSpeaker) Interrupt(kind CueKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts = append(s.interrupts, kind)
}

// TestEmitSuppressedWhileInactive verifies that cues are dropped entirely
// outside an active session.
func TestEmitSuppressedWhileInactive(t *testing.T) {
	sp := &recordingSpeaker{}
	ch := NewCueChannel(sp)

	ch.Emit(CueForm, "Keep your back straight")
	if _, ok := ch.Current(CueForm); ok {
		t.Error("cue recorded while channel inactive")
	}
	if len(sp.spoken) != 0 {
		t.Errorf("spoke %d cues while inactive, want 0", len(sp.spoken))
	}
}

// TestEmitLastWriteWins verifies that a newer cue replaces the current one for
// its kind, interrupting whatever was playing.
func TestEmitLastWriteWins(t *testing.T) {
	sp := &recordingSpeaker{}
	ch := NewCueChannel(sp)
	ch.SetActive(true)

	ch.Emit(CueForm, "Keep your back straight")
	ch.Emit(CueForm, "Slow down")

	cue, ok := ch.Current(CueForm)
	if !ok {
		t.Fatal("no current cue")
	}
	if cue.Text != "Slow down" {
		t.Errorf("current = %q, want the newest cue", cue.Text)
	}
	if len(sp.spoken) != 2 {
		t.Fatalf("spoke %d cues, want 2", len(sp.spoken))
	}
	if sp.spoken[1].Seq <= sp.spoken[0].Seq {
		t.Error("cue sequence numbers not increasing")
	}
	// The second emit must interrupt the first before speaking.
	if len(sp.interrupts) != 1 || sp.interrupts[0] != CueForm {
		t.Errorf("interrupts = %v, want one CueForm interrupt", sp.interrupts)
	}
}

// TestKindsIndependent verifies that rep-count and form cues never suppress
// each other.
func TestKindsIndependent(t *testing.T) {
	sp := &recordingSpeaker{}
	ch := NewCueChannel(sp)
	ch.SetActive(true)

	ch.Emit(CueRepCount, "5")
	ch.Emit(CueForm, "Good form")

	rep, ok := ch.Current(CueRepCount)
	if !ok || rep.Text != "5" {
		t.Errorf("rep cue = %+v, want text 5", rep)
	}
	form, ok := ch.Current(CueForm)
	if !ok || form.Text != "Good form" {
		t.Errorf("form cue = %+v, want text Good form", form)
	}
	if len(sp.interrupts) != 0 {
		t.Errorf("interrupts = %v, want none across kinds", sp.interrupts)
	}
}

// TestErrorTextSuppressed verifies that error-shaped feedback from the
// analysis service is never spoken.
func TestErrorTextSuppressed(t *testing.T) {
	sp := &recordingSpeaker{}
	ch := NewCueChannel(sp)
	ch.SetActive(true)

	for _, text := range []string{
		"Error: no landmarks",
		"internal error",
		"Could not process frame",
	} {
		ch.Emit(CueForm, text)
	}
	if _, ok := ch.Current(CueForm); ok {
		t.Error("error text recorded as a cue")
	}
	if len(sp.spoken) != 0 {
		t.Errorf("spoke %d error cues, want 0", len(sp.spoken))
	}
}

// TestDeactivateDropsEmits verifies that flipping the channel off at session
// end suppresses further cues.
func TestDeactivateDropsEmits(t *testing.T) {
	sp := &recordingSpeaker{}
	ch := NewCueChannel(sp)
	ch.SetActive(true)
	ch.Emit(CueRepCount, "3")
	ch.SetActive(false)
	ch.Emit(CueRepCount, "4")

	cue, ok := ch.Current(CueRepCount)
	if !ok || cue.Text != "3" {
		t.Errorf("current = %+v, want the pre-deactivation cue", cue)
	}
}

// TestNilSpeaker verifies the channel works headless: cues are tracked for
// polling even with no speaker attached.
func TestNilSpeaker(t *testing.T) {
	ch := NewCueChannel(nil)
	ch.SetActive(true)
	ch.Emit(CueForm, "Good form")

	cue, ok := ch.Current(CueForm)
	if !ok || cue.Text != "Good form" {
		t.Errorf("current = %+v, want tracked cue", cue)
	}
}
