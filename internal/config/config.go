// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/lmsbridge/internal/logger"
	"github.com/woozymasta/lmsbridge/internal/vars"
)

// ErrNoAuthToken is returned when the admin token is neither passed as a flag nor set in the environment.
var ErrNoAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `LMSBRIDGE_AUTH_TOKEN` was not specified")

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"LMSBRIDGE"`
	LMS       LMS           `group:"LMS Options" namespace:"lms" env-namespace:"LMSBRIDGE_LMS"`
	Discovery Discovery     `group:"Discovery Options" namespace:"discovery" env-namespace:"LMSBRIDGE_DISCOVERY"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"LMSBRIDGE_DB"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"LMSBRIDGE_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"LMSBRIDGE_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address        string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken      string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	AllowedPlayers []string      `short:"p" long:"allowed-player" env:"ALLOWED_PLAYERS" description:"Player ids allowed to be controlled (empty allows all)" env-delim:","`
	MaxBodySize    int64         `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"512"`
	PollInterval   time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"Player list push interval for websocket watchers" default:"5s"`
	TrustProxy     bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	FakeLMS        bool          `long:"fake-lms" env:"FAKE_LMS" hidden:"true"`
}

// LMS holds media server connection configuration.
type LMS struct {
	// betteralign:ignore

	Host        string        `short:"H" long:"host" env:"HOST" description:"Server host, discovered via UDP broadcast when empty"`
	Port        int           `short:"P" long:"port" env:"PORT" description:"Server command line interface port" default:"9090"`
	Timeout     time.Duration `long:"timeout" env:"TIMEOUT" description:"Connect and round trip timeout for one command" default:"5s"`
	MaxLineSize int           `long:"max-line-size" env:"MAX_LINE_SIZE" description:"Max size of one response line in bytes" default:"1048576"`
}

// Discovery holds UDP discovery configuration.
type Discovery struct {
	// betteralign:ignore

	Address string        `long:"address" env:"ADDRESS" description:"Probe destination address" default:"255.255.255.255:3483"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"Time to wait for a server reply" default:"3s"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path       string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"lmsbridge.db"`
	PruneOlder time.Duration `long:"prune-older" description:"Delete players not seen within duration and exit"`
	CheckAll   bool          `long:"check-all" description:"Re-check ALL stored players. Update if connected, delete otherwise, then exit"`
	Workers    int           `long:"workers" env:"WORKERS" description:"Concurrent checks for maintenance tasks" default:"4"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"60"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// ParseArgs reads the configuration from the given arguments and environment variables.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return &cfg, nil
	}

	if cfg.Server.AuthToken == "" {
		return nil, ErrNoAuthToken
	}

	if cfg.LMS.Port <= 0 || cfg.LMS.Port > 65535 {
		return nil, fmt.Errorf("invalid LMS port %d", cfg.LMS.Port)
	}

	return &cfg, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Fprint(os.Stdout)
		os.Exit(0)
	}

	return cfg
}
