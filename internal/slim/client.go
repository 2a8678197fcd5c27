// Package slim implements a client for the Logitech Media Server command line protocol.
//
// Every call opens its own TCP connection, sends one command line, reads one reply line and
// closes the connection, so a Client holds no mutable state and is safe for concurrent use.
package slim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/config"
)

const (
	// DefaultPort is the command line interface port of a stock server.
	DefaultPort = 9090

	// DefaultTimeout bounds connect plus round trip when the options leave it unset.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxLineSize bounds a reply line when the options leave it unset.
	DefaultMaxLineSize = 1 << 20
)

// Client sends commands to one server endpoint.
type Client struct {
	host    string
	addr    string
	port    int
	timeout time.Duration
	maxLine int
}

// New creates a client bound to host and port. A zero port selects DefaultPort.
func New(host string, port int, options config.LMS) *Client {
	if port == 0 {
		port = DefaultPort
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxLine := options.MaxLineSize
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}

	return &Client{
		host:    host,
		port:    port,
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		maxLine: maxLine,
	}
}

// Host returns the server host the client is bound to.
func (c *Client) Host() string {
	return c.host
}

// Port returns the server port the client is bound to.
func (c *Client) Port() int {
	return c.port
}

// Addr returns the host:port dial address.
func (c *Client) Addr() string {
	return c.addr
}

// Request performs one connect, send, receive, close exchange and returns the decoded reply tokens.
// The reply normally starts with the echoed command; Request does not strip it.
func (c *Client) Request(ctx context.Context, args ...string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logCtx := log.With().Str("addr", c.addr).Logger()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w: %w", ErrConnection, c.addr, ctxErr, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, c.addr, err)
	}
	defer func() {
		_ = conn.Close()
		logCtx.Trace().Msg("Connection closed")
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	logCtx.Trace().Strs("args", args).Msg("Sending command")
	if _, err := conn.Write(EncodeCommand(args...)); err != nil {
		return nil, transportError(ctx, "write", err)
	}

	line, err := c.readLine(ctx, conn)
	if err != nil {
		return nil, err
	}

	tokens, err := DecodeLine(line)
	if err != nil {
		return nil, err
	}
	logCtx.Trace().Strs("tokens", tokens).Msg("Received response")

	return tokens, nil
}

// Question appends "?" to args and returns the last token that follows the echoed command.
// It is used for single value lookups such as "player count".
func (c *Client) Question(ctx context.Context, args ...string) (string, error) {
	tokens, err := c.Request(ctx, append(slices.Clone(args), "?")...)
	if err != nil {
		return "", err
	}

	rest, err := stripEcho(tokens, args)
	if err != nil {
		return "", err
	}

	if len(rest) == 0 || (len(rest) == 1 && rest[0] == "?") {
		return "", fmt.Errorf("%w: %q", ErrNoAnswer, args)
	}

	return rest[len(rest)-1], nil
}

// Query sends args as is and returns whatever follows the echoed command.
func (c *Client) Query(ctx context.Context, args ...string) (Result, error) {
	tokens, err := c.Request(ctx, args...)
	if err != nil {
		return Result{}, err
	}

	rest, err := stripEcho(tokens, args)
	if err != nil {
		return Result{}, err
	}

	return Result{tokens: rest}, nil
}

// readLine reads exactly one newline terminated line, bounded by the client's max line size.
func (c *Client) readLine(ctx context.Context, conn net.Conn) (string, error) {
	reader := bufio.NewReader(io.LimitReader(conn, int64(c.maxLine)+1))

	line, err := reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", transportError(ctx, "read", err)
		}

		switch {
		case len(line) > c.maxLine:
			return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedResponse, c.maxLine)
		case len(line) == 0:
			return "", fmt.Errorf("%w: connection closed before response", ErrTransport)
		default:
			return "", fmt.Errorf("%w: unterminated line %q", ErrMalformedResponse, line)
		}
	}

	if reader.Buffered() > 0 {
		return "", fmt.Errorf("%w: unexpected data after response line", ErrMalformedResponse)
	}

	return line, nil
}

// stripEcho verifies that tokens start with args and returns the remainder.
func stripEcho(tokens, args []string) ([]string, error) {
	if len(tokens) < len(args) {
		return nil, fmt.Errorf("%w: %d tokens for a %d token command", ErrMalformedResponse, len(tokens), len(args))
	}

	if !slices.Equal(tokens[:len(args)], args) {
		return nil, fmt.Errorf("%w: reply %q does not echo %q", ErrMalformedResponse, tokens[:len(args)], args)
	}

	return tokens[len(args):], nil
}

func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, ctxErr)
	}

	// The connection deadline mirrors the context deadline and may fire first.
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, context.DeadlineExceeded)
	}

	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
