package discovery

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/lmsbridge/internal/config"
)

// responder answers every datagram on a loopback socket and records the last payload.
func responder(t *testing.T) (string, *atomic.Value) {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var payload atomic.Value
	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			payload.Store(string(buf[:n]))
			_, _ = conn.WriteTo([]byte("ENAME"), from)
		}
	}()

	return conn.LocalAddr().String(), &payload
}

// countingConn counts Close calls and can inject write or read failures.
type countingConn struct {
	net.PacketConn
	writeErr error
	readErr  error
	closed   atomic.Int32
}

func (c *countingConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.PacketConn.WriteTo(p, addr)
}

func (c *countingConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.readErr != nil {
		return 0, nil, c.readErr
	}
	return c.PacketConn.ReadFrom(p)
}

func (c *countingConn) Close() error {
	c.closed.Add(1)
	return c.PacketConn.Close()
}

func counting(conn *countingConn) listenFunc {
	return func(ctx context.Context) (net.PacketConn, error) {
		inner, err := listenUDP(ctx)
		if err != nil {
			return nil, err
		}
		conn.PacketConn = inner
		return conn, nil
	}
}

// silentAddress returns a loopback address that never answers.
func silentAddress(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn.LocalAddr().String()
}

func TestDiscoverReturnsSenderAddress(t *testing.T) {
	addr, payload := responder(t)

	host, err := Discover(context.Background(), config.Discovery{Address: addr, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", host)
	}
	if got, _ := payload.Load().(string); got != Probe {
		t.Errorf("probe payload = %q, want %q", got, Probe)
	}
}

func TestDiscoverTimeout(t *testing.T) {
	start := time.Now()

	_, err := Discover(context.Background(), config.Discovery{
		Address: silentAddress(t),
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestDiscoverParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := Discover(ctx, config.Discovery{Address: silentAddress(t), Timeout: 5 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestDiscoverBadAddress(t *testing.T) {
	_, err := Discover(context.Background(), config.Discovery{Address: "no-port", Timeout: time.Second})
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected ErrSend, got %v", err)
	}
}

func TestDiscoverClosesSocketOnce(t *testing.T) {
	addr, _ := responder(t)
	silent := silentAddress(t)

	tests := []struct {
		name     string
		address  string
		conn     *countingConn
		expected error
	}{
		{
			name:    "success",
			address: addr,
			conn:    &countingConn{},
		},
		{
			name:     "timeout",
			address:  silent,
			conn:     &countingConn{},
			expected: ErrTimeout,
		},
		{
			name:     "send error",
			address:  addr,
			conn:     &countingConn{writeErr: errors.New("network unreachable")},
			expected: ErrSend,
		},
		{
			name:     "socket error",
			address:  addr,
			conn:     &countingConn{readErr: errors.New("connection reset")},
			expected: ErrSocket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := config.Discovery{Address: tt.address, Timeout: 100 * time.Millisecond}

			_, err := discover(context.Background(), options, counting(tt.conn))
			if tt.expected == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expected != nil && !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}

			if got := tt.conn.closed.Load(); got != 1 {
				t.Errorf("socket closed %d times, want 1", got)
			}
		})
	}
}

func TestDiscoverListenFailure(t *testing.T) {
	failing := func(context.Context) (net.PacketConn, error) {
		return nil, errors.New("too many open files")
	}

	_, err := discover(context.Background(), config.Discovery{Address: "127.0.0.1:3483"}, failing)
	if !errors.Is(err, ErrSocket) {
		t.Fatalf("expected ErrSocket, got %v", err)
	}
}
