package lidar

import (
	"log"
	"sync"
	"time"

	"github.com/banshee-data/rslidar/internal/timeutil"
)

// PacketStats tracks decode-path statistics with thread-safe operations.
// The decoder itself is single-threaded, but the receive layer updates
// stats from its socket goroutines while a logger reads them.
type PacketStats struct {
	mu            sync.Mutex
	clock         timeutil.Clock
	msopCount     int64
	difopCount    int64
	byteCount     int64
	rejectedCount int64 // packets the decoder refused (bad magic, short)
	droppedCount  int64 // packets dropped before decode (queue overflow)
	pointCount    int64 // points appended, sentinels included
	finiteCount   int64 // points that passed the filter gate
	lastReset     time.Time

	// Lifetime totals, unaffected by window resets.
	totals  Snapshot
	created time.Time
}

// NewPacketStats creates a PacketStats instance using the real clock.
func NewPacketStats() *PacketStats {
	return NewPacketStatsWithClock(timeutil.RealClock{})
}

// NewPacketStatsWithClock creates a PacketStats with an injected clock.
func NewPacketStatsWithClock(clock timeutil.Clock) *PacketStats {
	now := clock.Now()
	return &PacketStats{
		clock:     clock,
		lastReset: now,
		created:   now,
	}
}

// AddMSOP records one received measurement packet.
func (ps *PacketStats) AddMSOP(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.msopCount++
	ps.byteCount += int64(bytes)
	ps.totals.MSOPPackets++
	ps.totals.Bytes += int64(bytes)
}

// AddDIFOP records one received device-info packet.
func (ps *PacketStats) AddDIFOP(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.difopCount++
	ps.byteCount += int64(bytes)
	ps.totals.DIFOPPackets++
	ps.totals.Bytes += int64(bytes)
}

// AddRejected records a packet the decoder could not use.
func (ps *PacketStats) AddRejected() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.rejectedCount++
	ps.totals.Rejected++
}

// AddDropped records a packet dropped before it reached the decoder.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
	ps.totals.Dropped++
}

// AddPoints records decoded output: total points appended and how many of
// them carried finite geometry.
func (ps *PacketStats) AddPoints(total, finite int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.pointCount += int64(total)
	ps.finiteCount += int64(finite)
	ps.totals.Points += int64(total)
	ps.totals.FinitePoints += int64(finite)
}

// Snapshot is one stats window.
type Snapshot struct {
	MSOPPackets  int64
	DIFOPPackets int64
	Bytes        int64
	Rejected     int64
	Dropped      int64
	Points       int64
	FinitePoints int64
	Window       time.Duration
}

// Totals returns the lifetime counters; the Window field spans the whole
// collector lifetime. Unaffected by GetAndReset.
func (ps *PacketStats) Totals() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	t := ps.totals
	t.Window = ps.clock.Now().Sub(ps.created)
	return t
}

// GetAndReset returns the current window and starts a new one.
func (ps *PacketStats) GetAndReset() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.clock.Now()
	s := Snapshot{
		MSOPPackets:  ps.msopCount,
		DIFOPPackets: ps.difopCount,
		Bytes:        ps.byteCount,
		Rejected:     ps.rejectedCount,
		Dropped:      ps.droppedCount,
		Points:       ps.pointCount,
		FinitePoints: ps.finiteCount,
		Window:       now.Sub(ps.lastReset),
	}
	ps.msopCount = 0
	ps.difopCount = 0
	ps.byteCount = 0
	ps.rejectedCount = 0
	ps.droppedCount = 0
	ps.pointCount = 0
	ps.finiteCount = 0
	ps.lastReset = now
	return s
}

// LogStats logs the current window and resets it. Quiet when nothing
// arrived, so an idle listener does not spam the log.
func (ps *PacketStats) LogStats() {
	s := ps.GetAndReset()
	if s.MSOPPackets == 0 && s.DIFOPPackets == 0 && s.Rejected == 0 && s.Dropped == 0 {
		return
	}
	secs := s.Window.Seconds()
	if secs <= 0 {
		secs = 1
	}
	log.Printf("Lidar stats (/sec): %.2f MB, %.1f msop, %.1f difop, %.0f points (%.0f finite), %d rejected, %d dropped",
		float64(s.Bytes)/secs/(1024*1024),
		float64(s.MSOPPackets)/secs,
		float64(s.DIFOPPackets)/secs,
		float64(s.Points)/secs,
		float64(s.FinitePoints)/secs,
		s.Rejected, s.Dropped)
}
