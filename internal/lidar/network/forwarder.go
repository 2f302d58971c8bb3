package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"
)

// PacketForwarder mirrors raw sensor packets to another address without
// blocking the receive path. Useful for fanning one sensor out to a second
// consumer (a recorder, a debug session) while decoding locally.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
	dropped     atomic.Int64
}

// NewPacketForwarder creates a forwarder that sends packets to addr:port.
func NewPacketForwarder(addr string, port int, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	udpAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start launches the forwarding goroutine. Dropped-packet counts are
// logged at the configured interval rather than per packet.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				f.conn.Close()
				return
			case pkt := <-f.channel:
				if _, err := f.conn.Write(pkt); err != nil {
					lastError = err
				}
			case <-ticker.C:
				if dropped := f.dropped.Swap(0); dropped > 0 || lastError != nil {
					log.Printf("Forwarder %s: %d dropped, last error: %v", f.address, dropped, lastError)
					lastError = nil
				}
			}
		}
	}()
}

// ForwardAsync queues a packet for forwarding, dropping it if the queue is
// full so the caller never blocks.
func (f *PacketForwarder) ForwardAsync(pkt []byte) {
	buf := make([]byte, len(pkt))
	copy(buf, pkt)
	select {
	case f.channel <- buf:
	default:
		f.dropped.Add(1)
	}
}
