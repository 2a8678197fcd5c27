package server

import (
	"sync"
	"time"

	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/slim"
	"github.com/woozymasta/lmsbridge/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background inventory processing.
type Server struct {
	// storage keeps the inventory of players seen in live listings.
	storage *storage.Repository

	// control issues live commands to the media server.
	control *control.Controller

	// allowedPlayers is a set of hashed player ids (using xxhash) that may be controlled.
	// An empty set allows every player.
	allowedPlayers map[uint64]struct{}

	// queue passes player sightings from HTTP handlers to background workers.
	queue chan inventoryJob

	// queueMu guards closing queue against concurrent sends from websocket watchers.
	queueMu sync.RWMutex

	// shutdown is closed to stop workers, websocket watchers and the rate limiter janitor.
	shutdown chan struct{}

	// stopOnce guards closing shutdown and queue.
	stopOnce sync.Once

	// authToken is the secret token required to access the API.
	authToken string

	// wg waits for background workers before shutdown completes.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// pollInterval is how often websocket watchers receive a fresh player list.
	pollInterval time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// when determining the client's real IP address.
	trustProxy bool
}

// inventoryJob is one player sighting waiting to be written to storage.
type inventoryJob struct {
	Seen   time.Time
	Record slim.PlayerRecord
}
