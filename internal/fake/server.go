package fake

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/slim"
)

// DiscoveryReply is the datagram the fake server answers probes with.
const DiscoveryReply = "ENAME\x0elmsbridge-fake"

// Responder may override the reply to a decoded command line.
// When ok is false the built-in command handling answers instead.
// The returned line is written as is, so it must carry its own terminator.
type Responder func(tokens []string) (line string, ok bool)

// Server simulates the command line interface and discovery responder of a media server.
type Server struct {
	listener  net.Listener
	packet    net.PacketConn
	responder Responder
	players   []*Player
	commands  [][]string
	wg        sync.WaitGroup
	mu        sync.Mutex
	closeOnce sync.Once
}

// NewServer creates a server with the given players in index order.
func NewServer(players ...Player) *Server {
	s := &Server{}
	for _, p := range players {
		s.players = append(s.players, &p)
	}

	return s
}

// SetResponder installs an override for command replies.
func (s *Server) SetResponder(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responder = r
}

// Listen starts the TCP command interface on addr, e.g. "127.0.0.1:0".
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	log.Debug().Str("addr", listener.Addr().String()).Msg("Fake server listening")
	return nil
}

// ListenDiscovery starts the UDP probe responder on addr, e.g. "127.0.0.1:0".
func (s *Server) ListenDiscovery(addr string) error {
	packet, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return err
	}
	s.packet = packet

	s.wg.Add(1)
	go s.discoveryLoop()

	return nil
}

// Host returns the host the command interface listens on.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the port the command interface listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// DiscoveryAddr returns the address of the UDP probe responder.
func (s *Server) DiscoveryAddr() string {
	return s.packet.LocalAddr().String()
}

// Player returns a snapshot of the player with the given id.
func (s *Server) Player(id string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.lookup(id); p != nil {
		return *p, true
	}

	return Player{}, false
}

// Commands returns every decoded command line received so far.
func (s *Server) Commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, len(s.commands))
	copy(out, s.commands)

	return out
}

// Close stops both listeners and waits for the serving goroutines.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.listener != nil {
			err = s.listener.Close()
		}
		if s.packet != nil {
			err = errors.Join(err, s.packet.Close())
		}
		s.wg.Wait()
	})

	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		tokens, err := slim.DecodeLine(line)
		if err != nil {
			return
		}

		if _, err := conn.Write([]byte(s.reply(tokens))); err != nil {
			return
		}
	}
}

func (s *Server) discoveryLoop() {
	defer s.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, from, err := s.packet.ReadFrom(buf)
		if err != nil {
			return
		}

		if n == 0 || buf[0] != 'e' {
			continue
		}

		_, _ = s.packet.WriteTo([]byte(DiscoveryReply), from)
	}
}

func (s *Server) reply(tokens []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, tokens)

	if s.responder != nil {
		if line, ok := s.responder(tokens); ok {
			return line
		}
	}

	return encode(s.handle(tokens))
}

// handle answers a command the way the real server does: the command is echoed and a "?"
// is replaced by the answer. Unknown commands are echoed back unchanged.
func (s *Server) handle(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}

	if tokens[0] == "player" {
		return s.handleServer(tokens)
	}

	p := s.lookup(tokens[0])
	if p == nil || len(tokens) < 2 {
		return tokens
	}

	args := tokens[1:]
	switch args[0] {
	case "status":
		return append(tokens,
			"player_name:"+p.Name,
			"player_connected:"+boolString(p.Connected),
			"player_ip:"+p.IP,
			"model:"+p.Model,
			"power:"+boolString(p.Power),
			"mixer volume:"+strconv.Itoa(signedVolume(p)),
		)

	case "connected":
		if len(args) == 2 && args[1] == "?" {
			return answer(tokens, boolString(p.Connected))
		}

	case "name":
		if len(args) == 2 && args[1] == "?" {
			return answer(tokens, p.Name)
		}

	case "power":
		if len(args) == 2 {
			if args[1] == "?" {
				return answer(tokens, boolString(p.Power))
			}
			p.Power = args[1] == "1"
		}

	case "mixer":
		if len(args) != 3 {
			return tokens
		}

		switch args[1] {
		case "volume":
			if args[2] == "?" {
				return answer(tokens, strconv.Itoa(signedVolume(p)))
			}
			setVolume(p, args[2])

		case "muting":
			if args[2] == "?" {
				return answer(tokens, boolString(p.Muted))
			}
			if args[2] == "toggle" {
				p.Muted = !p.Muted
			} else {
				p.Muted = args[2] == "1"
			}
		}
	}

	return tokens
}

func (s *Server) handleServer(tokens []string) []string {
	if len(tokens) < 3 {
		return tokens
	}

	switch {
	case tokens[1] == "count" && tokens[2] == "?":
		return answer(tokens, strconv.Itoa(len(s.players)))

	case (tokens[1] == "id" || tokens[1] == "name") && len(tokens) == 4 && tokens[3] == "?":
		index, err := strconv.Atoi(tokens[2])
		if err != nil || index < 0 || index >= len(s.players) {
			return tokens[:3]
		}

		if tokens[1] == "id" {
			return answer(tokens, s.players[index].ID)
		}
		return answer(tokens, s.players[index].Name)
	}

	return tokens
}

func (s *Server) lookup(id string) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}

	return nil
}

// answer replaces the trailing "?" of a question with value.
func answer(tokens []string, value string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	out[len(out)-1] = value

	return out
}

func setVolume(p *Player, value string) {
	relative := strings.HasPrefix(value, "+") || strings.HasPrefix(value, "-")

	n, err := strconv.Atoi(value)
	if err != nil {
		return
	}

	if relative {
		n += p.Volume
	}
	p.Volume = min(max(n, 0), 100)
}

// signedVolume reports a muted player's volume as negative, as the real server does.
func signedVolume(p *Player) int {
	if p.Muted {
		return -p.Volume
	}

	return p.Volume
}

func boolString(v bool) string {
	if v {
		return "1"
	}

	return "0"
}

func encode(tokens []string) string {
	escaped := make([]string, len(tokens))
	for i, token := range tokens {
		escaped[i] = slim.EscapeToken(token)
	}

	return strings.Join(escaped, " ") + "\n"
}
