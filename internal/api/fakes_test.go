package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/apperr"
	"github.com/lalith-99/castboard/internal/cache"
	"github.com/lalith-99/castboard/internal/models"
	"github.com/lalith-99/castboard/internal/storage"
	"github.com/lalith-99/castboard/internal/upload"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory repositories mirroring the Postgres semantics the handlers
// rely on: nil-when-absent lookups, apperr kinds on mutations, LEFT JOIN
// style enrichment that tolerates dangling pointers.

type memMediaRepo struct {
	seq      int64
	rows     map[int64]models.Media
	channels *memChannelRepo
}

func newMemMediaRepo() *memMediaRepo {
	return &memMediaRepo{rows: map[int64]models.Media{}}
}

func (f *memMediaRepo) Insert(_ context.Context, filename, mimeType string) (*models.Media, error) {
	f.seq++
	m := models.Media{
		ID:        f.seq,
		Filename:  filename,
		MimeType:  mimeType,
		CreatedAt: time.Now().Add(time.Duration(f.seq) * time.Millisecond),
	}
	f.rows[m.ID] = m
	return &m, nil
}

func (f *memMediaRepo) GetByID(_ context.Context, id int64) (*models.Media, error) {
	if m, ok := f.rows[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *memMediaRepo) GetByFilename(_ context.Context, filename string) (*models.Media, error) {
	for _, m := range f.rows {
		if m.Filename == filename {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *memMediaRepo) ListPaged(_ context.Context, page models.PageOptions) ([]models.Media, int64, error) {
	all := make([]models.Media, 0, len(f.rows))
	for _, m := range f.rows {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if page.Offset >= len(all) {
		return []models.Media{}, total, nil
	}
	all = all[page.Offset:]
	if len(all) > page.Limit {
		all = all[:page.Limit]
	}
	return all, total, nil
}

func (f *memMediaRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.rows[id]; !ok {
		return apperr.NotFound("Media not found.")
	}
	delete(f.rows, id)
	return nil
}

func (f *memMediaRepo) ChannelsUsing(_ context.Context, mediaID int64) ([]models.Channel, error) {
	out := make([]models.Channel, 0)
	if f.channels == nil {
		return out, nil
	}
	for _, ch := range f.channels.rows {
		if ch.CurrentMediaID != nil && *ch.CurrentMediaID == mediaID {
			out = append(out, *ch)
		}
	}
	return out, nil
}

type memChannelRepo struct {
	seq   int64
	rows  map[string]*models.Channel
	media *memMediaRepo
}

func newMemChannelRepo(media *memMediaRepo) *memChannelRepo {
	f := &memChannelRepo{rows: map[string]*models.Channel{}, media: media}
	media.channels = f
	return f
}

func (f *memChannelRepo) Insert(_ context.Context, name, description string) (*models.Channel, error) {
	if _, ok := f.rows[name]; ok {
		return nil, apperr.Conflict("Channel already exists.")
	}
	f.seq++
	ch := &models.Channel{
		ID:          f.seq,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().Add(time.Duration(f.seq) * time.Millisecond),
	}
	f.rows[name] = ch
	return ch, nil
}

func (f *memChannelRepo) enrich(ch *models.Channel) models.ChannelState {
	st := models.ChannelState{Channel: *ch}
	if ch.CurrentMediaID != nil {
		if m, ok := f.media.rows[*ch.CurrentMediaID]; ok {
			st.MediaID = &m.ID
			st.MediaFilename = &m.Filename
			st.MediaMimeType = &m.MimeType
		}
	}
	return st
}

func (f *memChannelRepo) GetState(_ context.Context, name string) (*models.ChannelState, error) {
	ch, ok := f.rows[name]
	if !ok {
		return nil, nil
	}
	st := f.enrich(ch)
	return &st, nil
}

func (f *memChannelRepo) ListStates(_ context.Context) ([]models.ChannelState, error) {
	all := make([]models.ChannelState, 0, len(f.rows))
	for _, ch := range f.rows {
		all = append(all, f.enrich(ch))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

func (f *memChannelRepo) UpdateDescription(_ context.Context, name, description string) error {
	ch, ok := f.rows[name]
	if !ok {
		return apperr.NotFound("Channel not found.")
	}
	ch.Description = description
	return nil
}

func (f *memChannelRepo) SetCurrentMedia(_ context.Context, name string, mediaID int64) error {
	ch, ok := f.rows[name]
	if !ok {
		return apperr.NotFound("Channel not found.")
	}
	id := mediaID
	ch.CurrentMediaID = &id
	return nil
}

func (f *memChannelRepo) Delete(_ context.Context, name string) error {
	if _, ok := f.rows[name]; !ok {
		return apperr.NotFound("Channel not found.")
	}
	delete(f.rows, name)
	return nil
}

// testEnv wires real handlers over in-memory repos and a real temp-dir
// blob store. No auth middleware: handler behavior is under test here,
// the middleware has its own tests.
type testEnv struct {
	channels *memChannelRepo
	media    *memMediaRepo
	blobs    *storage.DiskStore
	router   *gin.Engine
}

var testLimits = upload.Limits{
	MaxFileSize: 4 * 1024 * 1024,
	AllowedMIME: []string{"image/png", "image/jpeg", "video/mp4"},
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	media := newMemMediaRepo()
	channels := newMemChannelRepo(media)

	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	logger := zap.NewNop()
	cc := cache.NewChannelCache(nil, time.Second, logger)
	pipeline := upload.NewPipeline(media, channels, blobs, testLimits, logger)

	channelHandler := NewChannelHandler(channels, cc, logger)
	mediaHandler := NewMediaHandler(media, blobs, logger)
	manageHandler := NewManageHandler(channels, media, pipeline, blobs, cc, logger)

	router := gin.New()
	router.GET("/api/channels", channelHandler.List)
	router.GET("/api/channels/:name", channelHandler.Get)
	router.GET("/api/media", mediaHandler.List)
	router.GET("/api/media/:id", mediaHandler.Get)
	router.GET("/api/media/:id/download", mediaHandler.Download)
	router.POST("/api/manage", manageHandler.Handle)

	return &testEnv{
		channels: channels,
		media:    media,
		blobs:    blobs,
		router:   router,
	}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// postForm sends /api/manage an urlencoded action request.
func (e *testEnv) postForm(t *testing.T, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return e.postMultipart(t, fields, "", "", "", nil)
}

// postMultipart sends /api/manage a multipart request, optionally with a
// file part named "media".
func (e *testEnv) postMultipart(t *testing.T, fields map[string]string, fileField, filename, mimeType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+filename+`"`)
		hdr.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/manage", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
