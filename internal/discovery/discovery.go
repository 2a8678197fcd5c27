// Package discovery locates a media server on the local network with a UDP broadcast probe.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/config"
)

const (
	// DefaultAddress is the broadcast destination servers listen on for probes.
	DefaultAddress = "255.255.255.255:3483"

	// DefaultTimeout bounds the wait for a reply when the options leave it unset.
	DefaultTimeout = 3 * time.Second

	// Probe is the payload of the discovery request.
	Probe = "e"

	maxDatagram = 1500
)

var (
	// ErrTimeout reports that no server replied within the timeout.
	ErrTimeout = errors.New("discovery timeout")

	// ErrSend reports that the probe could not be sent.
	ErrSend = errors.New("discovery send error")

	// ErrSocket reports a failure of the UDP socket itself.
	ErrSocket = errors.New("discovery socket error")
)

type listenFunc func(ctx context.Context) (net.PacketConn, error)

func listenUDP(ctx context.Context) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, "udp4", ":0")
}

// Discover broadcasts a probe and returns the IP address of the first server that replies.
// The reply payload is not interpreted. Broadcast is enabled on UDP sockets by the Go runtime.
func Discover(ctx context.Context, options config.Discovery) (string, error) {
	return discover(ctx, options, listenUDP)
}

func discover(parent context.Context, options config.Discovery, listen listenFunc) (string, error) {
	address := options.Address
	if address == "" {
		address = DefaultAddress
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dst, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrSend, address, err)
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := listen(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: listen: %w", ErrSocket, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	log.Debug().Str("address", dst.String()).Dur("timeout", timeout).Msg("Sending discovery probe")

	if _, err := conn.WriteTo([]byte(Probe), dst); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSend, dst, err)
	}

	buf := make([]byte, maxDatagram)
	_, from, err := conn.ReadFrom(buf)
	if err != nil {
		if parentErr := parent.Err(); parentErr != nil {
			return "", fmt.Errorf("discovery: %w", parentErr)
		}

		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return "", fmt.Errorf("%w: no reply from %s within %s", ErrTimeout, dst, timeout)
		}

		return "", fmt.Errorf("%w: %w", ErrSocket, err)
	}

	host := hostOf(from)
	log.Debug().Str("host", host).Msg("Server discovered")

	return host, nil
}

func hostOf(addr net.Addr) string {
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		return udpAddr.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}
