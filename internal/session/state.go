package session

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Peer is the remote endpoint the link is currently locked to
type Peer struct {
	Addr     netip.Addr `json:"addr"`
	ID       uuid.UUID  `json:"id"`
	LockedAt time.Time  `json:"locked_at"`
}

// State is the session record shared by the transmit and receive streams.
//
// The receive stream owns the partner, lock and packet timestamp; the
// suppression controller owns the capture gate; the feature switches are
// driven from outside. The partner is set exactly while the lock is held.
type State struct {
	mu         sync.RWMutex
	peer       *Peer
	lastPacket time.Time

	suppressed atomic.Bool

	srcMu      sync.RWMutex
	microphone BooleanSource
	speaker    BooleanSource
	alert      BooleanSource
	display    TextSink
}

// NewState creates an unlocked session with no switches bound
func NewState() *State {
	return &State{}
}

// BindMicrophone binds the microphone switch
func (s *State) BindMicrophone(src BooleanSource) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	s.microphone = src
}

// BindSpeaker binds the speaker switch
func (s *State) BindSpeaker(src BooleanSource) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	s.speaker = src
}

// BindAlert binds the alert tone switch
func (s *State) BindAlert(src BooleanSource) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	s.alert = src
}

// BindDisplay binds the partner address display
func (s *State) BindDisplay(sink TextSink) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	s.display = sink
}

func (s *State) read(src *BooleanSource) bool {
	s.srcMu.RLock()
	b := *src
	s.srcMu.RUnlock()
	return b != nil && b.State()
}

// MicrophoneEnabled reports the external microphone switch. An unbound
// switch reads as off.
func (s *State) MicrophoneEnabled() bool {
	return s.read(&s.microphone)
}

// CaptureEnabled reports whether local audio may be captured and sent: the
// microphone switch is on and echo suppression is not muting capture.
func (s *State) CaptureEnabled() bool {
	return s.MicrophoneEnabled() && !s.suppressed.Load()
}

// PlaybackEnabled reports the external speaker switch
func (s *State) PlaybackEnabled() bool {
	return s.read(&s.speaker)
}

// AlertEnabled reports the external alert tone switch
func (s *State) AlertEnabled() bool {
	return s.read(&s.alert)
}

// SetCaptureSuppressed gates local capture on behalf of echo suppression
func (s *State) SetCaptureSuppressed(suppressed bool) {
	s.suppressed.Store(suppressed)
}

// CaptureSuppressed reports whether echo suppression is muting capture
func (s *State) CaptureSuppressed() bool {
	return s.suppressed.Load()
}

// Partner returns the locked partner address
func (s *State) Partner() (netip.Addr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peer == nil {
		return netip.Addr{}, false
	}
	return s.peer.Addr, true
}

// Peer returns a copy of the locked peer
func (s *State) Peer() (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peer == nil {
		return Peer{}, false
	}
	return *s.peer, true
}

// Locked reports whether a sender is locked
func (s *State) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peer != nil
}

// LastPacket returns the arrival time of the most recent inbound frame
func (s *State) LastPacket() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPacket
}

// Observe records an inbound frame from src at now. When no sender is locked
// src becomes the partner; frames from other sources never replace a held
// lock. It returns the locked peer and whether this frame created the lock.
func (s *State) Observe(src netip.Addr, now time.Time) (Peer, bool) {
	s.mu.Lock()
	s.lastPacket = now
	if s.peer != nil {
		p := *s.peer
		s.mu.Unlock()
		return p, false
	}

	s.peer = &Peer{
		Addr:     src.Unmap(),
		ID:       uuid.New(),
		LockedAt: now,
	}
	p := *s.peer
	s.mu.Unlock()

	s.publish(p.Addr.String())
	return p, true
}

// Expire releases the lock when no frame arrived for longer than timeout.
// It returns the released peer and whether the lock was cleared.
func (s *State) Expire(now time.Time, timeout time.Duration) (Peer, bool) {
	s.mu.Lock()
	if s.peer == nil || now.Sub(s.lastPacket) <= timeout {
		s.mu.Unlock()
		return Peer{}, false
	}

	p := *s.peer
	s.peer = nil
	s.mu.Unlock()

	s.publish("")
	return p, true
}

func (s *State) publish(text string) {
	s.srcMu.RLock()
	display := s.display
	s.srcMu.RUnlock()

	if display != nil {
		display.PublishText(text)
	}
}
