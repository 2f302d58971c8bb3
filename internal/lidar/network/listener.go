// Package network receives RoboSense sensor traffic and feeds it into a
// packet decoder. A sensor emits MSOP and DIFOP on two UDP ports; the
// listener binds both and serialises all packets into one decoder
// instance, which is not safe for concurrent use by construction.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/banshee-data/rslidar/internal/lidar"
)

// PacketDecoder is the decode entry-point pair the listener drives. It is
// satisfied by *parse.Decoder.
type PacketDecoder interface {
	DecodeMSOP(pkt []byte, buf []lidar.Point) ([]lidar.Point, int, int, error)
	DecodeDIFOP(pkt []byte) error
}

// PointSink receives the points decoded from one MSOP packet. The slice is
// only valid for the duration of the call; implementations that keep the
// points must copy them.
type PointSink interface {
	ConsumePoints(points []lidar.Point, firstAzimuth int)
}

type packetKind uint8

const (
	msopPacket packetKind = iota
	difopPacket
)

type inboundPacket struct {
	kind    packetKind
	payload []byte
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	MSOPAddress  string // e.g. ":6699"
	DIFOPAddress string // e.g. ":7788"
	RcvBuf       int
	LogInterval  time.Duration
	Stats        *lidar.PacketStats
	Forwarder    *PacketForwarder
	Decoder      PacketDecoder
	Sink         PointSink

	// SocketFactory is optional; tests inject mock sockets here.
	SocketFactory UDPSocketFactory
}

// Listener owns the two receive sockets and the single dispatch loop that
// serialises decoder calls.
type Listener struct {
	cfg     ListenerConfig
	stats   *lidar.PacketStats
	packets chan inboundPacket
}

// NewListener creates a listener with defaults filled in: a 4 MB socket
// buffer, one-minute stats interval and freshly created stats if none are
// supplied.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.RcvBuf == 0 {
		cfg.RcvBuf = 4 << 20
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	if cfg.Stats == nil {
		cfg.Stats = lidar.NewPacketStats()
	}
	if cfg.SocketFactory == nil {
		cfg.SocketFactory = NewRealUDPSocketFactory()
	}
	return &Listener{
		cfg:     cfg,
		stats:   cfg.Stats,
		packets: make(chan inboundPacket, 256),
	}
}

// Stats returns the listener's statistics collector.
func (l *Listener) Stats() *lidar.PacketStats { return l.stats }

// Start binds both sockets and runs until the context is cancelled. It
// blocks; run it in a goroutine when the caller needs to continue.
func (l *Listener) Start(ctx context.Context) error {
	msopSock, err := l.listen(l.cfg.MSOPAddress)
	if err != nil {
		return fmt.Errorf("msop socket: %w", err)
	}
	defer msopSock.Close()

	difopSock, err := l.listen(l.cfg.DIFOPAddress)
	if err != nil {
		return fmt.Errorf("difop socket: %w", err)
	}
	defer difopSock.Close()

	log.Printf("Lidar listener started: msop %s, difop %s", l.cfg.MSOPAddress, l.cfg.DIFOPAddress)

	if l.cfg.Forwarder != nil {
		l.cfg.Forwarder.Start(ctx)
	}

	go l.receive(ctx, msopSock, msopPacket)
	go l.receive(ctx, difopSock, difopPacket)
	go l.logStatsLoop(ctx)

	return l.dispatch(ctx)
}

func (l *Listener) listen(address string) (UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}
	sock, err := l.cfg.SocketFactory.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := sock.SetReadBuffer(l.cfg.RcvBuf); err != nil {
		log.Printf("Warning: failed to set receive buffer to %d: %v", l.cfg.RcvBuf, err)
	}
	return sock, nil
}

// receive reads datagrams from one socket and queues them for dispatch.
// Short read deadlines keep the loop responsive to cancellation.
func (l *Listener) receive(ctx context.Context, sock UDPSocket, kind packetKind) {
	buffer := make([]byte, 2048) // packets are 1248 bytes plus margin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sock.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := sock.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("UDP read error: %v", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buffer[:n])
		select {
		case l.packets <- inboundPacket{kind: kind, payload: payload}:
		default:
			// Dispatch is behind; dropping here keeps receive latency flat.
			l.stats.AddDropped()
		}
	}
}

// dispatch is the single consumer of the packet queue; only this goroutine
// touches the decoder. The point buffer is reused across packets so steady
// state allocates nothing per packet.
func (l *Listener) dispatch(ctx context.Context) error {
	var buf []lidar.Point
	for {
		select {
		case <-ctx.Done():
			log.Print("Lidar listener stopping")
			return ctx.Err()
		case p := <-l.packets:
			if l.cfg.Forwarder != nil {
				l.cfg.Forwarder.ForwardAsync(p.payload)
			}
			switch p.kind {
			case msopPacket:
				l.stats.AddMSOP(len(p.payload))
				out, _, firstAzimuth, err := l.cfg.Decoder.DecodeMSOP(p.payload, buf[:0])
				if err != nil {
					l.stats.AddRejected()
					continue
				}
				buf = out[:0]
				l.stats.AddPoints(len(out), countFinite(out))
				if l.cfg.Sink != nil {
					l.cfg.Sink.ConsumePoints(out, firstAzimuth)
				}
			case difopPacket:
				l.stats.AddDIFOP(len(p.payload))
				if err := l.cfg.Decoder.DecodeDIFOP(p.payload); err != nil {
					l.stats.AddRejected()
				}
			}
		}
	}
}

func (l *Listener) logStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

func countFinite(points []lidar.Point) int {
	n := 0
	for _, p := range points {
		if p.Finite() {
			n++
		}
	}
	return n
}
