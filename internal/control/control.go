// Package control maps media server players onto simple power, volume and mute switches.
//
// Every operation resolves the server, opens a fresh client and issues its commands;
// no player state is kept between calls.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/config"
	"github.com/woozymasta/lmsbridge/internal/discovery"
	"github.com/woozymasta/lmsbridge/internal/slim"
)

// Status fields read by the controller.
const (
	FieldPower  = "power"
	FieldVolume = "mixer volume"
	FieldMuting = "mixer muting"
)

// ErrMissingField reports a status reply without the field an operation needs,
// which is also what an unknown player id produces.
var ErrMissingField = errors.New("missing status field")

// Resolver yields the host of the server to talk to.
type Resolver interface {
	Host(ctx context.Context) (string, error)
}

// StaticHost resolves to a fixed, configured host.
type StaticHost string

// Host returns the configured host.
func (h StaticHost) Host(context.Context) (string, error) {
	return string(h), nil
}

// DiscoveryResolver runs UDP discovery on every call.
type DiscoveryResolver struct {
	Options config.Discovery
}

// Host broadcasts a probe and returns the first responder.
func (r DiscoveryResolver) Host(ctx context.Context) (string, error) {
	return discovery.Discover(ctx, r.Options)
}

// NewResolver prefers a configured host and falls back to discovery.
func NewResolver(cfg *config.Config) Resolver {
	if cfg.LMS.Host != "" {
		return StaticHost(cfg.LMS.Host)
	}

	return DiscoveryResolver{Options: cfg.Discovery}
}

// Controller issues player commands through a freshly resolved client per call.
type Controller struct {
	resolver Resolver
	options  config.LMS
}

// New creates a controller. options.Port selects the command port (zero means the default).
func New(resolver Resolver, options config.LMS) *Controller {
	return &Controller{
		resolver: resolver,
		options:  options,
	}
}

// Pin resolves the server once and returns a controller bound to that host,
// so a batch of calls does not repeat discovery.
func (c *Controller) Pin(ctx context.Context) (*Controller, error) {
	host, err := c.resolver.Host(ctx)
	if err != nil {
		return nil, err
	}

	return New(StaticHost(host), c.options), nil
}

func (c *Controller) client(ctx context.Context) (*slim.Client, error) {
	host, err := c.resolver.Host(ctx)
	if err != nil {
		return nil, err
	}

	return slim.New(host, c.options.Port, c.options), nil
}

// Players lists all players with their status fields. Partial results come with a joined error.
func (c *Controller) Players(ctx context.Context) ([]slim.PlayerRecord, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	return client.Players(ctx)
}

// Status returns the status fields of one player.
func (c *Controller) Status(ctx context.Context, id string) (map[string]string, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Query(ctx, id, "status")
	if err != nil {
		return nil, err
	}

	return result.Fields(), nil
}

// Power reports whether the player is switched on.
func (c *Controller) Power(ctx context.Context, id string) (bool, error) {
	status, err := c.Status(ctx, id)
	if err != nil {
		return false, err
	}

	power, ok := status[FieldPower]
	if !ok {
		return false, fmt.Errorf("%w: %q for player %s", ErrMissingField, FieldPower, id)
	}

	return power == "1", nil
}

// SetPower switches the player on or off.
func (c *Controller) SetPower(ctx context.Context, id string, on bool) error {
	if err := c.command(ctx, id, "power", flag(on)); err != nil {
		return err
	}

	log.Debug().Str("player", id).Bool("on", on).Msg("Power set")
	return nil
}

// Volume returns the mixer volume clamped to 0..100; a muted player reads as 0.
func (c *Controller) Volume(ctx context.Context, id string) (int, error) {
	status, err := c.Status(ctx, id)
	if err != nil {
		return 0, err
	}

	volume, err := volumeOf(status, id)
	if err != nil {
		return 0, err
	}

	return min(max(volume, 0), 100), nil
}

// SetVolume clamps volume to 0..100, sends it and returns the value sent.
func (c *Controller) SetVolume(ctx context.Context, id string, volume int) (int, error) {
	volume = min(max(volume, 0), 100)

	if err := c.command(ctx, id, "mixer", "volume", strconv.Itoa(volume)); err != nil {
		return 0, err
	}

	log.Debug().Str("player", id).Int("volume", volume).Msg("Volume set")
	return volume, nil
}

// Muted reports whether the player is muted. Servers that omit the muting field
// signal mute with a negative volume.
func (c *Controller) Muted(ctx context.Context, id string) (bool, error) {
	status, err := c.Status(ctx, id)
	if err != nil {
		return false, err
	}

	if muting, ok := status[FieldMuting]; ok {
		return muting == "1", nil
	}

	volume, err := volumeOf(status, id)
	if err != nil {
		return false, err
	}

	return volume < 0, nil
}

// SetMuted mutes or unmutes the player.
func (c *Controller) SetMuted(ctx context.Context, id string, muted bool) error {
	if err := c.command(ctx, id, "mixer", "muting", flag(muted)); err != nil {
		return err
	}

	log.Debug().Str("player", id).Bool("muted", muted).Msg("Mute set")
	return nil
}

// Connected reports whether the server currently has a connection to the player.
func (c *Controller) Connected(ctx context.Context, id string) (bool, error) {
	client, err := c.client(ctx)
	if err != nil {
		return false, err
	}

	answer, err := client.Question(ctx, id, "connected")
	if err != nil {
		return false, err
	}

	return answer == "1", nil
}

func (c *Controller) command(ctx context.Context, id string, args ...string) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}

	_, err = client.Query(ctx, append([]string{id}, args...)...)
	return err
}

func volumeOf(status map[string]string, id string) (int, error) {
	raw, ok := status[FieldVolume]
	if !ok {
		return 0, fmt.Errorf("%w: %q for player %s", ErrMissingField, FieldVolume, id)
	}

	volume, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number for player %s", ErrMissingField, FieldVolume, id)
	}

	return volume, nil
}

func flag(v bool) string {
	if v {
		return "1"
	}

	return "0"
}
