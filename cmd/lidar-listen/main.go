// Package main runs the live UDP decode path: it binds the MSOP and DIFOP
// ports of one sensor, decodes packets as they arrive and logs throughput
// statistics. Optionally mirrors raw packets to another consumer and
// records the session in a lidar database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/rslidar/internal/lidar"
	"github.com/banshee-data/rslidar/internal/lidar/lidardb"
	"github.com/banshee-data/rslidar/internal/lidar/network"
	"github.com/banshee-data/rslidar/internal/lidar/parse"
)

var (
	model          = flag.String("model", "RS32", "sensor model (RS32 or RSBP)")
	udpAddress     = flag.String("udp-addr", "", "UDP bind address (default: all interfaces)")
	msopPort       = flag.Int("msop-port", 6699, "UDP port for MSOP packets")
	difopPort      = flag.Int("difop-port", 7788, "UDP port for DIFOP packets")
	minDistance    = flag.Float64("min-distance", 0, "minimum distance in metres (0 = model floor)")
	maxDistance    = flag.Float64("max-distance", 0, "maximum distance in metres (0 = model cap)")
	forwardPackets = flag.Bool("forward", false, "forward received UDP packets to another address")
	forwardPort    = flag.Int("forward-port", 2368, "port to forward UDP packets to")
	forwardAddr    = flag.String("forward-addr", "localhost", "address to forward UDP packets to")
	dbFile         = flag.String("db", "", "optional sqlite database to record the session")
	rcvBuf         = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	logInterval    = flag.Int("log-interval", 10, "statistics logging interval in seconds")
)

func main() {
	flag.Parse()
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("lidar-listen: %v", err)
	}
}

func run() error {
	m, err := parse.ModelByName(*model)
	if err != nil {
		return err
	}
	dec := parse.NewDecoder(m, parse.Config{
		MinDistance: *minDistance,
		MaxDistance: *maxDistance,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var forwarder *network.PacketForwarder
	if *forwardPackets {
		forwarder, err = network.NewPacketForwarder(*forwardAddr, *forwardPort, time.Minute)
		if err != nil {
			return err
		}
		log.Printf("Forwarding packets to %s:%d", *forwardAddr, *forwardPort)
	}

	stats := lidar.NewPacketStats()
	listener := network.NewListener(network.ListenerConfig{
		MSOPAddress:  fmt.Sprintf("%s:%d", *udpAddress, *msopPort),
		DIFOPAddress: fmt.Sprintf("%s:%d", *udpAddress, *difopPort),
		RcvBuf:       *rcvBuf,
		LogInterval:  time.Duration(*logInterval) * time.Second,
		Stats:        stats,
		Forwarder:    forwarder,
		Decoder:      dec,
	})

	var db *lidardb.LidarDB
	var sessionID string
	start := time.Now()
	if *dbFile != "" {
		db, err = lidardb.NewLidarDB(*dbFile)
		if err != nil {
			return err
		}
		defer db.Close()
		sessionID, err = db.StartSession(m.Name, "udp", start)
		if err != nil {
			return err
		}
		log.Printf("Recording session %s", sessionID)
	}

	err = listener.Start(ctx)

	if db != nil {
		if closeErr := db.CloseSession(sessionID, time.Now(), stats.Totals()); closeErr != nil {
			log.Printf("Failed to close session %s: %v", sessionID, closeErr)
		}
	}
	return err
}
