package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned when no datagram arrived within the receive bound
	ErrTimeout = errors.New("transport: receive timeout")
	// ErrClosed is returned after the socket has been closed
	ErrClosed = errors.New("transport: socket closed")
)

// Sender sends frames from an unbound socket. Delivery is best effort.
type Sender struct {
	conn   *net.UDPConn
	logger *slog.Logger

	framesSent uint64
	bytesSent  uint64
	sendErrors uint64
	mu         sync.RWMutex
}

// NewSender opens a send socket on an ephemeral local port
func NewSender(logger *slog.Logger) (*Sender, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP send socket: %w", err)
	}

	logger.Info("UDP send socket created", slog.String("local_addr", conn.LocalAddr().String()))

	return &Sender{conn: conn, logger: logger}, nil
}

// Send writes one frame to dst. There is no retry.
func (s *Sender) Send(dst netip.AddrPort, frame []byte) error {
	n, err := s.conn.WriteToUDPAddrPort(frame, dst)

	s.mu.Lock()
	if err != nil {
		s.sendErrors++
	} else {
		s.framesSent++
		s.bytesSent += uint64(n)
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to send frame to %s: %w", dst, err)
	}
	return nil
}

// LocalAddr returns the ephemeral address frames are sent from
func (s *Sender) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close closes the send socket
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Statistics returns send counters
func (s *Sender) Statistics() SenderStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SenderStatistics{
		FramesSent: s.framesSent,
		BytesSent:  s.bytesSent,
		SendErrors: s.sendErrors,
	}
}

// SenderStatistics represents send counters
type SenderStatistics struct {
	FramesSent uint64 `json:"frames_sent"`
	BytesSent  uint64 `json:"bytes_sent"`
	SendErrors uint64 `json:"send_errors"`
}

// Receiver receives frames on the fixed communication port
type Receiver struct {
	conn   *net.UDPConn
	logger *slog.Logger

	framesReceived uint64
	bytesReceived  uint64
	timeouts       uint64
	readErrors     uint64
	mu             sync.RWMutex
}

// NewReceiver binds a receive socket to bindAddress:port
func NewReceiver(bindAddress string, port uint16, logger *slog.Logger) (*Receiver, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(bindAddress, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP receive socket: %w", err)
	}

	logger.Info("UDP receive socket bound", slog.String("address", conn.LocalAddr().String()))

	return &Receiver{conn: conn, logger: logger}, nil
}

// Receive reads one datagram into buf, waiting at most timeout. Datagrams
// larger than buf are truncated.
func (r *Receiver) Receive(buf []byte, timeout time.Duration) (int, netip.AddrPort, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, netip.AddrPort{}, ErrClosed
		}
		return 0, netip.AddrPort{}, fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, src, err := r.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()

		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			r.timeouts++
			return 0, netip.AddrPort{}, ErrTimeout
		case errors.Is(err, net.ErrClosed):
			return 0, netip.AddrPort{}, ErrClosed
		default:
			r.readErrors++
			return 0, netip.AddrPort{}, fmt.Errorf("failed to read UDP datagram: %w", err)
		}
	}

	r.mu.Lock()
	r.framesReceived++
	r.bytesReceived += uint64(n)
	r.mu.Unlock()

	return n, src, nil
}

// LocalAddr returns the bound address
func (r *Receiver) LocalAddr() netip.AddrPort {
	return r.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Close closes the receive socket
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Statistics returns receive counters
func (r *Receiver) Statistics() ReceiverStatistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return ReceiverStatistics{
		FramesReceived: r.framesReceived,
		BytesReceived:  r.bytesReceived,
		Timeouts:       r.timeouts,
		ReadErrors:     r.readErrors,
	}
}

// ReceiverStatistics represents receive counters
type ReceiverStatistics struct {
	FramesReceived uint64 `json:"frames_received"`
	BytesReceived  uint64 `json:"bytes_received"`
	Timeouts       uint64 `json:"timeouts"`
	ReadErrors     uint64 `json:"read_errors"`
}
