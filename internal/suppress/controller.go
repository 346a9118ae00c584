package suppress

import (
	"fmt"
	"sync"
	"time"
)

// Defaults match a 16-bit scale and the receive loop's nominal 10 ms period
const (
	DefaultThreshold   = 12000
	DefaultQuietTime   = 250 * time.Millisecond
	DefaultFramePeriod = 10 * time.Millisecond
)

// Controller is the hysteresis state machine that mutes local capture while
// loud remote audio is being played, so the speaker output does not re-enter
// the microphone and echo back to the peer.
//
// UNMUTED -> MUTED as soon as a frame's RMS exceeds the threshold.
// MUTED -> UNMUTED only after an unbroken run of frames below threshold/2
// whose nominal duration reaches the quiet time. Any other frame while muted
// resets the accumulated quiet time.
type Controller struct {
	threshold   int
	quietTime   time.Duration
	framePeriod time.Duration

	muted bool
	quiet time.Duration

	// Statistics
	frames  uint64
	mutes   uint64
	unmutes uint64
	lastRMS int
	changed time.Time

	mu sync.RWMutex
}

// Decision is the controller output for one frame
type Decision struct {
	Muted   bool // capture must be disabled
	Changed bool // state flipped on this frame
}

// Snapshot represents controller state and statistics
type Snapshot struct {
	Muted     bool          `json:"muted"`
	Quiet     time.Duration `json:"quiet"`
	Threshold int           `json:"threshold"`
	LastRMS   int           `json:"last_rms"`
	Frames    uint64        `json:"frames"`
	Mutes     uint64        `json:"mutes"`
	Unmutes   uint64        `json:"unmutes"`
	Changed   time.Time     `json:"changed"`
}

// NewController creates a controller in the unmuted state
func NewController(threshold int, quietTime, framePeriod time.Duration) (*Controller, error) {
	if threshold < 2 {
		return nil, fmt.Errorf("threshold must be at least 2, got %d", threshold)
	}

	if quietTime < 0 {
		return nil, fmt.Errorf("quiet time cannot be negative, got %v", quietTime)
	}

	if framePeriod <= 0 {
		return nil, fmt.Errorf("frame period must be positive, got %v", framePeriod)
	}

	return &Controller{
		threshold:   threshold,
		quietTime:   quietTime,
		framePeriod: framePeriod,
	}, nil
}

// Update feeds the RMS of one received frame and returns the capture decision
func (c *Controller) Update(rms int) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames++
	c.lastRMS = rms

	switch {
	case rms > c.threshold && !c.muted:
		c.muted = true
		c.quiet = 0
		c.mutes++
		c.changed = time.Now()
		return Decision{Muted: true, Changed: true}

	case rms < c.threshold/2 && c.muted:
		c.quiet += c.framePeriod
		if c.quiet >= c.quietTime {
			c.muted = false
			c.quiet = 0
			c.unmutes++
			c.changed = time.Now()
			return Decision{Muted: false, Changed: true}
		}

	default:
		c.quiet = 0
	}

	return Decision{Muted: c.muted}
}

// Muted reports whether capture is currently suppressed
func (c *Controller) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// Reset returns the controller to the unmuted state with no quiet time.
// Statistics are kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.muted = false
	c.quiet = 0
}

// Snapshot returns current state and statistics
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Muted:     c.muted,
		Quiet:     c.quiet,
		Threshold: c.threshold,
		LastRMS:   c.lastRMS,
		Frames:    c.frames,
		Mutes:     c.mutes,
		Unmutes:   c.unmutes,
		Changed:   c.changed,
	}
}

// GetThreshold returns the mute threshold
func (c *Controller) GetThreshold() int {
	return c.threshold
}
