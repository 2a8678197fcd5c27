package slim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/rs/zerolog/log"
)

// PlayerIDKey is the field under which a player's id is merged into its status fields.
const PlayerIDKey = "player_id"

// PlayerRecord is one player id together with the fields of its status reply.
type PlayerRecord struct {
	Status map[string]string
	ID     string
	Index  int
}

// Map merges the player id with the status fields. Status fields win on key collisions.
func (p PlayerRecord) Map() map[string]string {
	merged := make(map[string]string, len(p.Status)+1)
	merged[PlayerIDKey] = p.ID
	maps.Copy(merged, p.Status)

	return merged
}

// Name returns the player name reported by the server, if any.
func (p PlayerRecord) Name() string {
	return p.Status["player_name"]
}

// MarshalJSON encodes the record as its merged field map.
func (p PlayerRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// Players lists every player known to the server in server index order.
//
// Lookups run one at a time. A failing player does not abort the listing: the records that
// could be fetched are returned together with a joined error of *PlayerError values.
// Only a failure to read the player count returns no records.
func (c *Client) Players(ctx context.Context) ([]PlayerRecord, error) {
	answer, err := c.Question(ctx, "player", "count")
	if err != nil {
		return nil, fmt.Errorf("player count: %w", err)
	}

	count, err := strconv.Atoi(answer)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: player count %q", ErrMalformedResponse, answer)
	}

	records := make([]PlayerRecord, 0, count)
	var errs []error

	for index := 0; index < count; index++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		record, err := c.player(ctx, index)
		if err != nil {
			log.Debug().Err(err).Int("index", index).Msg("Player lookup failed")
			errs = append(errs, err)
			continue
		}
		records = append(records, record)
	}

	return records, errors.Join(errs...)
}

func (c *Client) player(ctx context.Context, index int) (PlayerRecord, error) {
	id, err := c.Question(ctx, "player", "id", strconv.Itoa(index))
	if err != nil {
		return PlayerRecord{}, &PlayerError{Index: index, Err: err}
	}

	status, err := c.Query(ctx, id, "status")
	if err != nil {
		return PlayerRecord{}, &PlayerError{Index: index, PlayerID: id, Err: err}
	}

	return PlayerRecord{
		ID:     id,
		Index:  index,
		Status: status.Fields(),
	}, nil
}
