//go:build pcap
// +build pcap

// Package main replays a PCAP capture of RoboSense sensor traffic through
// the packet decoder and reports decode statistics. Optionally persists
// the run as a decode session in a lidar database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/rslidar/internal/lidar"
	"github.com/banshee-data/rslidar/internal/lidar/lidardb"
	"github.com/banshee-data/rslidar/internal/lidar/network"
	"github.com/banshee-data/rslidar/internal/lidar/parse"
)

// Config holds the replay settings.
type Config struct {
	PCAPFile    string
	Model       string
	MSOPPort    int
	DIFOPPort   int
	MinDistance float64
	MaxDistance float64
	DBPath      string
	JSONOutput  bool
}

// Result summarises one replay.
type Result struct {
	PCAPFile     string  `json:"pcap_file"`
	Model        string  `json:"model"`
	DurationSecs float64 `json:"duration_secs"`
	MSOPPackets  int64   `json:"msop_packets"`
	DIFOPPackets int64   `json:"difop_packets"`
	Rejected     int64   `json:"rejected_packets"`
	Points       int64   `json:"points"`
	FinitePoints int64   `json:"finite_points"`
	EchoMode     string  `json:"echo_mode"`
	RPM          uint16  `json:"rpm"`
	PktsPerFrame uint32  `json:"pkts_per_frame"`
	EstFrames    float64 `json:"estimated_frames"`
	DifopLoaded  bool    `json:"calibration_loaded"`
	TemperatureC float32 `json:"temperature_c"`
	SessionID    string  `json:"session_id,omitempty"`
}

// azimuthCounter tracks revolutions by watching the first-block azimuth
// wrap past zero, giving a frame estimate independent of DIFOP accounting.
type azimuthCounter struct {
	prev  int
	wraps int
	seen  bool
}

func (a *azimuthCounter) ConsumePoints(points []lidar.Point, firstAzimuth int) {
	if a.seen && firstAzimuth < a.prev {
		a.wraps++
	}
	a.prev = firstAzimuth
	a.seen = true
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.PCAPFile, "pcap", "", "PCAP file to replay (required)")
	flag.StringVar(&cfg.Model, "model", "RS32", "sensor model (RS32 or RSBP)")
	flag.IntVar(&cfg.MSOPPort, "msop-port", 6699, "MSOP UDP port")
	flag.IntVar(&cfg.DIFOPPort, "difop-port", 7788, "DIFOP UDP port")
	flag.Float64Var(&cfg.MinDistance, "min-distance", 0, "minimum distance in metres (0 = model floor)")
	flag.Float64Var(&cfg.MaxDistance, "max-distance", 0, "maximum distance in metres (0 = model cap)")
	flag.StringVar(&cfg.DBPath, "db", "", "optional sqlite database to record the session")
	flag.BoolVar(&cfg.JSONOutput, "json", false, "print the result as JSON")
	flag.Parse()

	if cfg.PCAPFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("pcap-decode: %v", err)
	}
}

func run(cfg Config) error {
	model, err := parse.ModelByName(cfg.Model)
	if err != nil {
		return err
	}
	dec := parse.NewDecoder(model, parse.Config{
		MinDistance: cfg.MinDistance,
		MaxDistance: cfg.MaxDistance,
	})

	stats := lidar.NewPacketStats()
	frames := &azimuthCounter{}

	var db *lidardb.LidarDB
	var sessionID string
	start := time.Now()
	if cfg.DBPath != "" {
		db, err = lidardb.NewLidarDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		sessionID, err = db.StartSession(model.Name, cfg.PCAPFile, start)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}

	err = network.ReadPCAPFile(context.Background(), cfg.PCAPFile,
		cfg.MSOPPort, cfg.DIFOPPort, dec, frames, stats)
	if err != nil {
		return err
	}

	snap := stats.Totals()
	result := Result{
		PCAPFile:     cfg.PCAPFile,
		Model:        model.Name,
		DurationSecs: time.Since(start).Seconds(),
		MSOPPackets:  snap.MSOPPackets,
		DIFOPPackets: snap.DIFOPPackets,
		Rejected:     snap.Rejected,
		Points:       snap.Points,
		FinitePoints: snap.FinitePoints,
		EchoMode:     dec.EchoMode().String(),
		RPM:          dec.RPM(),
		PktsPerFrame: dec.PktsPerFrame(),
		EstFrames:    float64(frames.wraps),
		DifopLoaded:  dec.DifopLoaded(),
		TemperatureC: dec.Temperature(),
		SessionID:    sessionID,
	}

	if db != nil {
		if err := db.CloseSession(sessionID, time.Now(), snap); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
	}

	if cfg.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Replayed %s (%s)\n", result.PCAPFile, result.Model)
	fmt.Printf("  packets:  %d msop, %d difop, %d rejected\n",
		result.MSOPPackets, result.DIFOPPackets, result.Rejected)
	fmt.Printf("  points:   %d total, %d finite\n", result.Points, result.FinitePoints)
	fmt.Printf("  sensor:   echo=%s rpm=%d pkts/frame=%d calibrated=%v temp=%.1fC\n",
		result.EchoMode, result.RPM, result.PktsPerFrame, result.DifopLoaded, result.TemperatureC)
	fmt.Printf("  frames:   ~%.0f revolutions observed\n", result.EstFrames)
	if sessionID != "" {
		fmt.Printf("  session:  %s\n", sessionID)
	}
	return nil
}
