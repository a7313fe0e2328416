// Package syncclient is the display side of the poll protocol. A client
// holds only the last-seen media id for one channel; on every tick it
// fetches the channel's state, diffs by id, and re-renders only on
// change. The server keeps no per-display state at all.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often a display re-requests its channel.
const DefaultPollInterval = 3 * time.Second

// State is the display's position in its lifecycle. There is no terminal
// state: the machine runs for the whole display session.
type State int

const (
	// StateIdle: no media bound (or the channel doesn't exist yet).
	StateIdle State = iota
	// StateDisplaying: rendering a media item, id known.
	StateDisplaying
	// StateTransitioning: mid cross-fade between two items.
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDisplaying:
		return "displaying"
	case StateTransitioning:
		return "transitioning"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChannelUpdate is the decoded poll payload the machine is driven by.
// Nil means "channel not found"; the server reports that inside a 200
// envelope precisely so the poll loop can treat it as data, not failure.
type ChannelUpdate struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	CurrentMediaID *int64  `json:"current_media_id"`
	MimeType       *string `json:"mime_type"`
}

// Renderer swaps what the display shows. Implementations own the timed
// cross-fade (out, then in) so a media change never cuts abruptly.
type Renderer interface {
	Render(ctx context.Context, mediaID int64, mimeType string, data io.ReadCloser) error
	Clear(ctx context.Context) error
}

// Fetcher retrieves media bytes by id. The default implementation goes
// through the server's download endpoint; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, mediaID int64) (io.ReadCloser, string, error)
}

type Client struct {
	baseURL  string
	channel  string
	httpc    *http.Client
	renderer Renderer
	fetcher  Fetcher
	logger   *zap.Logger

	state     State
	currentID *int64
}

type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for polling (and the
// default fetcher).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// WithFetcher overrides how media bytes are retrieved.
func WithFetcher(f Fetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

func NewClient(baseURL, channel string, renderer Renderer, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		channel:  channel,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		renderer: renderer,
		logger:   logger,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = &httpFetcher{baseURL: baseURL, httpc: c.httpc}
	}
	return c
}

// State returns the machine's current state.
func (c *Client) State() State { return c.state }

// CurrentMediaID returns the last-seen media id, nil while idle.
func (c *Client) CurrentMediaID() *int64 { return c.currentID }

// Run polls until ctx is cancelled. One tick fires immediately so a
// freshly booted display doesn't stare at a blank screen for a full
// interval.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := c.Tick(ctx); err != nil {
		c.logger.Warn("poll tick failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// A failed tick is skipped, not a state transition: the
			// display keeps showing what it has until the server is
			// reachable again.
			if err := c.Tick(ctx); err != nil {
				c.logger.Warn("poll tick failed", zap.Error(err))
			}
		}
	}
}

// Tick performs one poll: fetch the channel state, then Apply it.
func (c *Client) Tick(ctx context.Context) error {
	update, err := c.poll(ctx)
	if err != nil {
		return err
	}
	return c.Apply(ctx, update)
}

// Apply drives the state machine with one server response. update == nil
// means the channel (or its binding) is gone.
//
// Comparison is purely by media id. An unchanged id is an idempotent
// no-op: no re-render, no flicker, nothing. On change the machine walks
// Displaying → Transitioning → Displaying(new); if the fetch or render
// fails mid-transition, the previous state is restored and the next tick
// retries, because the id still differs.
func (c *Client) Apply(ctx context.Context, update *ChannelUpdate) error {
	var newID *int64
	if update != nil {
		newID = update.CurrentMediaID
	}

	if sameID(c.currentID, newID) {
		return nil
	}

	if newID == nil {
		if err := c.renderer.Clear(ctx); err != nil {
			return fmt.Errorf("clear display: %w", err)
		}
		c.currentID = nil
		c.state = StateIdle
		return nil
	}

	prev := c.state
	c.state = StateTransitioning

	data, mimeType, err := c.fetcher.Fetch(ctx, *newID)
	if err != nil {
		c.state = prev
		return fmt.Errorf("fetch media %d: %w", *newID, err)
	}

	if err := c.renderer.Render(ctx, *newID, mimeType, data); err != nil {
		c.state = prev
		return fmt.Errorf("render media %d: %w", *newID, err)
	}

	id := *newID
	c.currentID = &id
	c.state = StateDisplaying

	c.logger.Info("display switched",
		zap.String("channel", c.channel),
		zap.Int64("media_id", id),
	)
	return nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// poll fetches and decodes one channel state. A {type:"error", data:null}
// envelope decodes to nil, nil; channel-not-found is data here.
func (c *Client) poll(ctx context.Context) (*ChannelUpdate, error) {
	u := fmt.Sprintf("%s/api/channels/%s", c.baseURL, url.PathEscape(c.channel))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: status %d", c.channel, resp.StatusCode)
	}

	var envelope struct {
		Type string         `json:"type"`
		Data *ChannelUpdate `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}

	return envelope.Data, nil
}

// httpFetcher pulls media bytes through the server's download endpoint.
type httpFetcher struct {
	baseURL string
	httpc   *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, mediaID int64) (io.ReadCloser, string, error) {
	u := fmt.Sprintf("%s/api/media/%d/download", f.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download media %d: status %d", mediaID, resp.StatusCode)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
