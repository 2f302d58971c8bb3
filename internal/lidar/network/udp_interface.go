package network

import (
	"net"
	"time"
)

// UDPSocket is the surface of *net.UDPConn the listener needs. The
// abstraction exists so listener behaviour can be tested without binding
// real ports.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets, enabling injection in tests.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

type realSocketFactory struct{}

// NewRealUDPSocketFactory returns a factory backed by net.ListenUDP.
func NewRealUDPSocketFactory() UDPSocketFactory { return realSocketFactory{} }

func (realSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket over a fixed packet list; once the
// list drains it simulates read timeouts, which keeps the listener's
// deadline loop spinning until the test cancels its context.
type MockUDPSocket struct {
	Packets   [][]byte
	readIndex int
	closed    bool
	localAddr *net.UDPAddr
}

// NewMockUDPSocket creates a mock socket bound to laddr that will deliver
// the given packets in order.
func NewMockUDPSocket(laddr *net.UDPAddr, packets [][]byte) *MockUDPSocket {
	return &MockUDPSocket{Packets: packets, localAddr: laddr}
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	if m.closed {
		return 0, nil, net.ErrClosed
	}
	if m.readIndex >= len(m.Packets) {
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.Packets[m.readIndex]
	m.readIndex++
	return copy(b, pkt), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}, nil
}

func (m *MockUDPSocket) SetReadBuffer(int) error         { return nil }
func (m *MockUDPSocket) SetReadDeadline(time.Time) error { return nil }
func (m *MockUDPSocket) Close() error                    { m.closed = true; return nil }
func (m *MockUDPSocket) LocalAddr() net.Addr             { return m.localAddr }

// MockUDPSocketFactory hands out mock sockets keyed by requested port.
type MockUDPSocketFactory struct {
	Sockets map[int]*MockUDPSocket
}

// ListenUDP returns the mock socket registered for laddr's port.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	s, ok := f.Sockets[laddr.Port]
	if !ok {
		return nil, net.ErrClosed
	}
	return s, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
