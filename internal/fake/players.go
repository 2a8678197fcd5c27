// Package fake provides an in-process stand-in for a media server, used for tests and development.
package fake

import (
	"fmt"
	"math/rand"
)

// Player is the simulated state of one player attached to the fake server.
type Player struct {
	ID        string
	Name      string
	Model     string
	IP        string
	Volume    int
	Power     bool
	Muted     bool
	Connected bool
}

// DemoPlayers generates count players with random MAC style ids, names and mixer state.
func DemoPlayers(count int) []Player {
	rooms := []string{"Kitchen", "Living Room", "Bedroom", "Office", "Garage", "Patio", "Bathroom"}
	models := []string{"squeezebox3", "baby", "fab4", "receiver", "squeezelite"}

	players := make([]Player, 0, count)
	for i := 0; i < count; i++ {
		name := rooms[i%len(rooms)]
		if i >= len(rooms) {
			name = fmt.Sprintf("%s %d", name, i/len(rooms)+1)
		}

		players = append(players, Player{
			ID: fmt.Sprintf("00:04:20:%02x:%02x:%02x",
				rand.Intn(256), rand.Intn(256), rand.Intn(256)),
			Name:      name,
			Model:     models[rand.Intn(len(models))],
			IP:        fmt.Sprintf("192.168.1.%d:%d", 100+i, 30000+rand.Intn(20000)),
			Volume:    rand.Intn(101),
			Power:     rand.Float32() < 0.5,
			Muted:     rand.Float32() < 0.1,
			Connected: true,
		})
	}

	return players
}
