//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/rslidar/internal/lidar"
)

// ReadPCAPFile replays captured sensor traffic through a decoder. Packets
// are routed by destination port: msopPort payloads go to DecodeMSOP,
// difopPort payloads to DecodeDIFOP, everything else is skipped. The
// replay is single-threaded, so decoder calls are naturally serialised.
//
// Only available when building with the 'pcap' tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, msopPort, difopPort int, dec PacketDecoder, sink PointSink, stats *lidar.PacketStats) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp and (port %d or port %d)", msopPort, difopPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filterStr, err)
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	startTime := time.Now()
	var buf []lidar.Point

	for {
		select {
		case <-ctx.Done():
			log.Printf("PCAP reader stopping (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				log.Printf("PCAP replay complete: %d packets in %v", packetCount, time.Since(startTime))
				return nil
			}
			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			packetCount++

			switch int(udp.DstPort) {
			case msopPort:
				if stats != nil {
					stats.AddMSOP(len(udp.Payload))
				}
				out, _, firstAzimuth, err := dec.DecodeMSOP(udp.Payload, buf[:0])
				if err != nil {
					if stats != nil {
						stats.AddRejected()
					}
					continue
				}
				buf = out[:0]
				if stats != nil {
					stats.AddPoints(len(out), countFinite(out))
				}
				if sink != nil {
					sink.ConsumePoints(out, firstAzimuth)
				}
			case difopPort:
				if stats != nil {
					stats.AddDIFOP(len(udp.Payload))
				}
				if err := dec.DecodeDIFOP(udp.Payload); err != nil && stats != nil {
					stats.AddRejected()
				}
			}

			if packetCount%10000 == 0 {
				log.Printf("PCAP progress: %d packets", packetCount)
			}
		}
	}
}
