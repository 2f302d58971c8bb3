package lidar

import (
	"testing"
	"time"

	"github.com/banshee-data/rslidar/internal/timeutil"
)

func TestPacketStatsWindow(t *testing.T) {
	clock := timeutil.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ps := NewPacketStatsWithClock(clock)

	ps.AddMSOP(1248)
	ps.AddMSOP(1248)
	ps.AddDIFOP(1248)
	ps.AddRejected()
	ps.AddPoints(384, 100)

	clock.Advance(10 * time.Second)
	s := ps.GetAndReset()

	if s.MSOPPackets != 2 || s.DIFOPPackets != 1 {
		t.Errorf("packets = %d/%d, want 2/1", s.MSOPPackets, s.DIFOPPackets)
	}
	if s.Bytes != 3*1248 {
		t.Errorf("bytes = %d, want %d", s.Bytes, 3*1248)
	}
	if s.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", s.Rejected)
	}
	if s.Points != 384 || s.FinitePoints != 100 {
		t.Errorf("points = %d/%d, want 384/100", s.Points, s.FinitePoints)
	}
	if s.Window != 10*time.Second {
		t.Errorf("window = %v, want 10s", s.Window)
	}

	// Reset: next snapshot is empty.
	clock.Advance(time.Second)
	if s := ps.GetAndReset(); s.MSOPPackets != 0 || s.Points != 0 {
		t.Errorf("expected empty window after reset, got %+v", s)
	}

	// Lifetime totals survive the window resets.
	tot := ps.Totals()
	if tot.MSOPPackets != 2 || tot.Points != 384 || tot.FinitePoints != 100 {
		t.Errorf("totals = %+v, want 2 packets / 384 points / 100 finite", tot)
	}
	if tot.Window != 11*time.Second {
		t.Errorf("totals window = %v, want 11s", tot.Window)
	}
}
