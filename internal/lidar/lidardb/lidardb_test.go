package lidardb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rslidar/internal/lidar"
)

func TestSessionLifecycle(t *testing.T) {
	db, err := NewLidarDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	id, err := db.StartSession("RS32", "capture.pcap", start)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	totals := lidar.Snapshot{
		MSOPPackets:  1000,
		DIFOPPackets: 10,
		Rejected:     2,
		Points:       384000,
		FinitePoints: 250000,
	}
	end := start.Add(40 * time.Second)
	require.NoError(t, db.CloseSession(id, end, totals))

	s, err := db.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "RS32", s.SensorModel)
	assert.Equal(t, "capture.pcap", s.Source)
	assert.True(t, s.StartedAt.Equal(start))
	assert.True(t, s.EndedAt.Equal(end))
	assert.Equal(t, int64(1000), s.MSOPPackets)
	assert.Equal(t, int64(250000), s.FinitePoints)
}

func TestSessionOpenHasNoEndTime(t *testing.T) {
	db, err := NewLidarDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id, err := db.StartSession("RSBP", "udp", time.Now())
	require.NoError(t, err)

	s, err := db.GetSession(id)
	require.NoError(t, err)
	assert.True(t, s.EndedAt.IsZero())
}

func TestInsertStats(t *testing.T) {
	db, err := NewLidarDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id, err := db.StartSession("RS32", "udp", time.Now())
	require.NoError(t, err)

	snap := lidar.Snapshot{
		MSOPPackets: 600, DIFOPPackets: 1, Bytes: 748800,
		Points: 230400, FinitePoints: 200000, Window: 10 * time.Second,
	}
	require.NoError(t, db.InsertStats(id, time.Now(), snap))

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM session_stats WHERE session_id = ?`, id).Scan(&count))
	assert.Equal(t, 1, count)
}
