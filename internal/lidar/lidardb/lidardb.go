// Package lidardb persists decode-session records and their periodic
// statistics snapshots to sqlite.
package lidardb

import (
	"database/sql"
	_ "embed"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rslidar/internal/lidar"
)

type LidarDB struct {
	*sql.DB
}

//go:embed schema.sql
var schemaSQL string

// NewLidarDB opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func NewLidarDB(path string) (*LidarDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("initialized lidar database schema")
	return &LidarDB{db}, nil
}

// Session describes one decoder lifetime.
type Session struct {
	ID           string
	SensorModel  string
	Source       string
	StartedAt    time.Time
	EndedAt      time.Time // zero until CloseSession
	MSOPPackets  int64
	DIFOPPackets int64
	Rejected     int64
	Points       int64
	FinitePoints int64
}

// StartSession inserts a new session row and returns its generated ID.
func (ldb *LidarDB) StartSession(sensorModel, source string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := ldb.Exec(
		`INSERT INTO decode_session (session_id, sensor_model, source, started_unix_nanos) VALUES (?, ?, ?, ?)`,
		id, sensorModel, source, startedAt.UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

// CloseSession finalises a session with its end time and counter totals.
func (ldb *LidarDB) CloseSession(id string, endedAt time.Time, totals lidar.Snapshot) error {
	_, err := ldb.Exec(
		`UPDATE decode_session
		 SET ended_unix_nanos = ?, msop_packets = ?, difop_packets = ?, rejected = ?, points = ?, finite_points = ?
		 WHERE session_id = ?`,
		endedAt.UnixNano(), totals.MSOPPackets, totals.DIFOPPackets, totals.Rejected,
		totals.Points, totals.FinitePoints, id)
	return err
}

// InsertStats stores one statistics window for a session.
func (ldb *LidarDB) InsertStats(id string, takenAt time.Time, s lidar.Snapshot) error {
	_, err := ldb.Exec(
		`INSERT INTO session_stats
		 (session_id, taken_unix_nanos, window_nanos, msop_packets, difop_packets, bytes, rejected, dropped, points, finite_points)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, takenAt.UnixNano(), s.Window.Nanoseconds(), s.MSOPPackets, s.DIFOPPackets,
		s.Bytes, s.Rejected, s.Dropped, s.Points, s.FinitePoints)
	return err
}

// GetSession loads one session row.
func (ldb *LidarDB) GetSession(id string) (*Session, error) {
	row := ldb.QueryRow(
		`SELECT session_id, sensor_model, source, started_unix_nanos, ended_unix_nanos,
		        msop_packets, difop_packets, rejected, points, finite_points
		 FROM decode_session WHERE session_id = ?`, id)

	var s Session
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&s.ID, &s.SensorModel, &s.Source, &started, &ended,
		&s.MSOPPackets, &s.DIFOPPackets, &s.Rejected, &s.Points, &s.FinitePoints); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started)
	if ended.Valid {
		s.EndedAt = time.Unix(0, ended.Int64)
	}
	return &s, nil
}
