//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"fmt"

	"github.com/banshee-data/rslidar/internal/lidar"
)

// ReadPCAPFile is a stub when PCAP support is disabled.
// Build with -tags=pcap to enable PCAP file replay.
func ReadPCAPFile(ctx context.Context, pcapFile string, msopPort, difopPort int, dec PacketDecoder, sink PointSink, stats *lidar.PacketStats) error {
	return fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP file replay")
}
