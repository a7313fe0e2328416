package syncclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingRenderer counts renders so tests can assert the "no change,
// no re-render" property.
type recordingRenderer struct {
	renders []int64
	clears  int
	fail    bool
}

func (r *recordingRenderer) Render(_ context.Context, mediaID int64, _ string, data io.ReadCloser) error {
	data.Close()
	if r.fail {
		return errors.New("render failed")
	}
	r.renders = append(r.renders, mediaID)
	return nil
}

func (r *recordingRenderer) Clear(_ context.Context) error {
	r.clears++
	return nil
}

// stubFetcher serves fixed bytes for any id.
type stubFetcher struct {
	fail bool
}

func (f *stubFetcher) Fetch(_ context.Context, mediaID int64) (io.ReadCloser, string, error) {
	if f.fail {
		return nil, "", errors.New("fetch failed")
	}
	return io.NopCloser(strings.NewReader(fmt.Sprintf("media-%d", mediaID))), "image/png", nil
}

func newTestClient(r Renderer, f Fetcher) *Client {
	return NewClient("http://unused", "lobby", r, zap.NewNop(), WithFetcher(f))
}

func id(v int64) *int64 { return &v }

func TestStartsIdle(t *testing.T) {
	c := newTestClient(&recordingRenderer{}, &stubFetcher{})
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.CurrentMediaID())
}

func TestIdleToDisplaying(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})

	err := c.Apply(context.Background(), &ChannelUpdate{Name: "lobby", CurrentMediaID: id(5)})
	require.NoError(t, err)

	assert.Equal(t, StateDisplaying, c.State())
	assert.Equal(t, int64(5), *c.CurrentMediaID())
	assert.Equal(t, []int64{5}, r.renders)
}

func TestUnchangedIDIsNoOp(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))
	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))
	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))

	// Three identical polls, exactly one render.
	assert.Equal(t, []int64{5}, r.renders)
	assert.Equal(t, StateDisplaying, c.State())
}

func TestIDChangeTransitions(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))
	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(9)}))

	assert.Equal(t, []int64{5, 9}, r.renders)
	assert.Equal(t, StateDisplaying, c.State())
	assert.Equal(t, int64(9), *c.CurrentMediaID())
}

func TestUnboundChannelClearsToIdle(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))
	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: nil}))

	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.CurrentMediaID())
	assert.Equal(t, 1, r.clears)
}

func TestMissingChannelBehavesLikeUnbound(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))
	// Channel deleted server-side: poll payload decodes to nil.
	require.NoError(t, c.Apply(ctx, nil))

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, r.clears)
}

func TestIdleNilUpdateIsNoOp(t *testing.T) {
	r := &recordingRenderer{}
	c := newTestClient(r, &stubFetcher{})

	// Display boots before its channel is provisioned: stays idle, no
	// clears, no noise, for as many ticks as it takes.
	require.NoError(t, c.Apply(context.Background(), nil))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, r.clears)
}

func TestFetchFailureRestoresStateAndRetries(t *testing.T) {
	r := &recordingRenderer{}
	f := &stubFetcher{}
	c := newTestClient(r, f)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(5)}))

	f.fail = true
	err := c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(9)})
	assert.Error(t, err)
	// Still displaying the old media; the id diff persists for a retry.
	assert.Equal(t, StateDisplaying, c.State())
	assert.Equal(t, int64(5), *c.CurrentMediaID())

	f.fail = false
	require.NoError(t, c.Apply(ctx, &ChannelUpdate{CurrentMediaID: id(9)}))
	assert.Equal(t, int64(9), *c.CurrentMediaID())
}

func TestRenderFailureRestoresState(t *testing.T) {
	r := &recordingRenderer{fail: true}
	c := newTestClient(r, &stubFetcher{})

	err := c.Apply(context.Background(), &ChannelUpdate{CurrentMediaID: id(5)})
	assert.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.CurrentMediaID())
}

func TestTickAgainstServer(t *testing.T) {
	var current *int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/channels/lobby", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if current == nil {
			fmt.Fprint(w, `{"type":"success","data":{"name":"lobby","current_media_id":null}}`)
			return
		}
		fmt.Fprintf(w, `{"type":"success","data":{"name":"lobby","current_media_id":%d}}`, *current)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := &recordingRenderer{}
	c := NewClient(srv.URL, "lobby", r, zap.NewNop(), WithFetcher(&stubFetcher{}))
	ctx := context.Background()

	require.NoError(t, c.Tick(ctx))
	assert.Equal(t, StateIdle, c.State())

	current = id(3)
	require.NoError(t, c.Tick(ctx))
	assert.Equal(t, StateDisplaying, c.State())
	assert.Equal(t, []int64{3}, r.renders)
}

func TestTickNetworkFailureKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"type":"success","data":{"name":"lobby","current_media_id":4}}`)
	}))

	r := &recordingRenderer{}
	c := NewClient(srv.URL, "lobby", r, zap.NewNop(), WithFetcher(&stubFetcher{}))
	ctx := context.Background()

	require.NoError(t, c.Tick(ctx))
	require.Equal(t, StateDisplaying, c.State())

	// Server goes away: the tick fails, the display keeps what it has.
	srv.Close()
	err := c.Tick(ctx)
	assert.Error(t, err)
	assert.Equal(t, StateDisplaying, c.State())
	assert.Equal(t, int64(4), *c.CurrentMediaID())
	assert.Equal(t, []int64{4}, r.renders)
}

func TestPollNotFoundEnvelopeDecodesToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"type":"error","message":"Channel not found","data":null}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ghost", &recordingRenderer{}, zap.NewNop(), WithFetcher(&stubFetcher{}))

	// Not-found comes back inside a 200 envelope; the tick succeeds and
	// the machine just stays idle.
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, StateIdle, c.State())
}
