package suppress

import (
	"testing"
	"time"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(DefaultThreshold, DefaultQuietTime, DefaultFramePeriod)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	return c
}

func TestNewControllerValidation(t *testing.T) {
	tests := []struct {
		name        string
		threshold   int
		quietTime   time.Duration
		framePeriod time.Duration
		expectErr   bool
	}{
		{name: "valid parameters", threshold: 12000, quietTime: 250 * time.Millisecond, framePeriod: 10 * time.Millisecond},
		{name: "zero quiet time", threshold: 12000, quietTime: 0, framePeriod: 10 * time.Millisecond},
		{name: "threshold too low", threshold: 1, quietTime: 250 * time.Millisecond, framePeriod: 10 * time.Millisecond, expectErr: true},
		{name: "negative quiet time", threshold: 12000, quietTime: -time.Millisecond, framePeriod: 10 * time.Millisecond, expectErr: true},
		{name: "zero frame period", threshold: 12000, quietTime: 250 * time.Millisecond, framePeriod: 0, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.threshold, tt.quietTime, tt.framePeriod)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestMuteIsImmediate(t *testing.T) {
	c := newTestController(t)

	d := c.Update(12000)
	if d.Muted {
		t.Fatal("Expected RMS equal to threshold not to mute")
	}

	d = c.Update(12001)
	if !d.Muted || !d.Changed {
		t.Fatalf("Expected mute on first frame above threshold, got %+v", d)
	}
	if !c.Muted() {
		t.Error("Expected controller to report muted")
	}
}

func TestEchoScenario(t *testing.T) {
	c := newTestController(t)

	// [20000, 20000, 3000 x 26] at 10ms per frame
	rms := []int{20000, 20000}
	for i := 0; i < 26; i++ {
		rms = append(rms, 3000)
	}

	unmutedAt := 0
	for i, r := range rms {
		frame := i + 1
		d := c.Update(r)

		switch {
		case frame == 1:
			if !d.Muted || !d.Changed {
				t.Fatalf("Expected mute at frame 1, got %+v", d)
			}
		case frame == 2:
			if !d.Muted || d.Changed {
				t.Fatalf("Expected to stay muted at frame 2, got %+v", d)
			}
		case frame < 27:
			if !d.Muted {
				t.Fatalf("Expected muted at frame %d", frame)
			}
		}

		if d.Changed && !d.Muted {
			unmutedAt = frame
		}
	}

	if unmutedAt != 27 {
		t.Errorf("Expected unmute at frame 27, got %d", unmutedAt)
	}
	if c.Muted() {
		t.Error("Expected unmuted after the run")
	}
	if q := c.Snapshot().Quiet; q != 0 {
		t.Errorf("Expected quiet time reset after unmute, got %v", q)
	}
}

func TestMidRangeFrameResetsQuietTime(t *testing.T) {
	c := newTestController(t)
	c.Update(20000)

	for i := 0; i < 24; i++ {
		c.Update(100)
	}
	if q := c.Snapshot().Quiet; q != 240*time.Millisecond {
		t.Fatalf("Expected 240ms quiet, got %v", q)
	}

	// Exactly threshold/2 is not quiet
	d := c.Update(6000)
	if !d.Muted {
		t.Fatal("Expected to remain muted")
	}
	if q := c.Snapshot().Quiet; q != 0 {
		t.Fatalf("Expected quiet reset to 0, got %v", q)
	}

	// A full fresh run is needed
	for i := 0; i < 24; i++ {
		if d := c.Update(100); !d.Muted {
			t.Fatalf("Expected muted during fresh run at frame %d", i+1)
		}
	}
	if d := c.Update(100); d.Muted {
		t.Error("Expected unmute after 25 continuous quiet frames")
	}
}

func TestLoudFrameWhileMutedResetsQuietTime(t *testing.T) {
	c := newTestController(t)
	c.Update(20000)
	c.Update(0)
	c.Update(0)

	d := c.Update(30000)
	if !d.Muted || d.Changed {
		t.Errorf("Expected muted without change, got %+v", d)
	}
	if q := c.Snapshot().Quiet; q != 0 {
		t.Errorf("Expected quiet reset, got %v", q)
	}
}

func TestQuietRunThreshold(t *testing.T) {
	// For any prefix of loud frames, capture re-enables only once continuous
	// quiet reaches the quiet time.
	for loud := 1; loud <= 5; loud++ {
		c := newTestController(t)
		for i := 0; i < loud; i++ {
			if d := c.Update(15000 + i); !d.Muted {
				t.Fatalf("Expected muted after loud frame %d", i+1)
			}
		}

		quietFrames := 0
		for c.Muted() {
			c.Update(5999)
			quietFrames++
			if quietFrames > 100 {
				t.Fatal("Controller never unmuted")
			}
		}

		if got := time.Duration(quietFrames) * DefaultFramePeriod; got != DefaultQuietTime {
			t.Errorf("Expected unmute after %v of quiet, got %v", DefaultQuietTime, got)
		}
	}
}

func TestResetAndSnapshot(t *testing.T) {
	c := newTestController(t)
	c.Update(20000)
	c.Update(10)

	snap := c.Snapshot()
	if !snap.Muted || snap.Mutes != 1 || snap.Frames != 2 || snap.LastRMS != 10 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if snap.Quiet != 10*time.Millisecond {
		t.Errorf("Expected 10ms quiet, got %v", snap.Quiet)
	}

	c.Reset()
	if c.Muted() {
		t.Error("Expected unmuted after reset")
	}
	if c.Snapshot().Quiet != 0 {
		t.Error("Expected zero quiet after reset")
	}
	if c.Snapshot().Mutes != 1 {
		t.Error("Expected statistics to survive reset")
	}
}

func TestGetThreshold(t *testing.T) {
	c, err := NewController(8000, DefaultQuietTime, DefaultFramePeriod)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}

	if c.GetThreshold() != 8000 {
		t.Errorf("Expected threshold 8000, got %d", c.GetThreshold())
	}
	if c.Snapshot().Threshold != c.GetThreshold() {
		t.Errorf("Expected snapshot threshold %d, got %d", c.GetThreshold(), c.Snapshot().Threshold)
	}

	// 7999 stays below the configured threshold, 8001 crosses it
	if c.Update(7999).Muted {
		t.Error("Expected no mute at RMS 7999")
	}
	if !c.Update(8001).Muted {
		t.Error("Expected mute at RMS 8001")
	}
}
