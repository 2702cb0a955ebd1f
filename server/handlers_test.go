package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"LiveRadio/cache"
	"LiveRadio/core/auth"
	"LiveRadio/core/radio"
	"LiveRadio/model"
	"LiveRadio/repository"
	"LiveRadio/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "admin-key"

type testEnv struct {
	router    *mux.Router
	source    *storage.DirSource
	catalog   *radio.Catalog
	store     *cache.FileStore
	scheduler *radio.Scheduler
	bgDir     string
}

type fakeHistory struct {
	rows []*model.PlayHistory
}

func (f *fakeHistory) RecordPlay(context.Context, model.Snapshot) error { return nil }

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]*model.PlayHistory, error) {
	if limit > 0 && limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func newTestEnv(t *testing.T, history *fakeHistory, tracks map[string]string) *testEnv {
	t.Helper()
	root := t.TempDir()

	source, err := storage.NewDirSource(filepath.Join(root, "audios"))
	require.NoError(t, err)
	for name, payload := range tracks {
		require.NoError(t, source.Add(context.Background(), name, []byte(payload)))
	}

	store, err := cache.NewFileStore(filepath.Join(root, "save-data"))
	require.NoError(t, err)

	bgDir := filepath.Join(root, "background")
	require.NoError(t, os.MkdirAll(bgDir, 0755))

	catalog := radio.NewCatalog(source, func(int) int { return 0 })
	require.NoError(t, catalog.Refresh(context.Background()))

	publisher := radio.NewPublisher(store, radio.PublisherOptions{})
	opts := radio.DefaultOptions
	opts.TickInterval = time.Hour
	scheduler := radio.NewScheduler(catalog, radio.NewBackgroundRotator(0, nil), publisher, opts)
	t.Cleanup(func() {
		_ = scheduler.Stop()
		publisher.Close()
	})

	var repo repository.PlayHistoryRepository
	if history != nil {
		repo = history
	}
	h := NewAPIHandler(catalog, scheduler, publisher, repo, auth.NewVerifier(testKey, ""))

	return &testEnv{
		router:    NewRouter(h, bgDir),
		source:    source,
		catalog:   catalog,
		store:     store,
		scheduler: scheduler,
		bgDir:     bgDir,
	}
}

func (e *testEnv) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func admin(extra ...string) map[string]string {
	h := map[string]string{"auth": testKey}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func TestGetSongWithoutTracks(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(http.MethodGet, "/get-song", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":true}`, rec.Body.String())
}

func TestGetSongFallsBackToFirstEntry(t *testing.T) {
	env := newTestEnv(t, nil, map[string]string{
		"a.json": `{"title":"A","duration":"0:05"}`,
		"b.json": `{"title":"B","duration":"0:07"}`,
	})

	rec := env.do(http.MethodGet, "/get-song", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"A","duration":"0:05"}`, rec.Body.String())
}

func TestGetSongServesPublishedTrack(t *testing.T) {
	env := newTestEnv(t, nil, map[string]string{
		"a.json": `{"title":"A"}`,
		"b.json": `{"title":"B"}`,
	})
	require.NoError(t, env.store.Set(context.Background(), model.KeySnapshot, model.Snapshot{Generation: 1, Name: "b.json"}))

	rec := env.do(http.MethodGet, "/get-song", "", nil)
	assert.JSONEq(t, `{"title":"B"}`, rec.Body.String())
}

func TestGetSongWhileIdle(t *testing.T) {
	env := newTestEnv(t, nil, map[string]string{"a.json": `{"title":"A"}`})
	require.NoError(t, env.store.Set(context.Background(), model.KeySnapshot, model.Snapshot{Generation: 3, SessionID: "idle"}))

	rec := env.do(http.MethodGet, "/get-song", "", nil)
	assert.JSONEq(t, `{"error":true}`, rec.Body.String())
}

func TestSyncReadDefaults(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(http.MethodGet, "/get-song-position", "", nil)
	assert.JSONEq(t, `{"t":0,"mod":1}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/get-bisi", "", nil)
	assert.JSONEq(t, `{"bi":0,"si":""}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/snapshot", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncReadsStoredValues(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, env.store.Set(ctx, model.KeySongStartData, model.SongStartData{T: 1234.5, Mod: 100000}))
	require.NoError(t, env.store.Set(ctx, model.KeyBiSi, model.BiSi{BackgroundID: 2, SessionID: "s-1"}))

	rec := env.do(http.MethodGet, "/get-song-position", "", nil)
	assert.JSONEq(t, `{"t":1234.5,"mod":100000}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/get-bisi", "", nil)
	assert.JSONEq(t, `{"bi":2,"si":"s-1"}`, rec.Body.String())
}

func TestAdminRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, path := range []string{"/update-songs-list", "/get-songs-list", "/delete-song", "/restart-player", "/api/status"} {
		rec := env.do(http.MethodGet, path, "", map[string]string{"auth": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := env.do(http.MethodPost, "/upload-song", `{}`, map[string]string{"file-name": "x.json"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, env.catalog.Len())
}

func TestUploadListDelete(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(http.MethodPost, "/upload-song", `{"title":"New","duration":"1:05"}`, admin("file-name", "new.json"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", rec.Body.String())
	assert.Equal(t, []string{"new.json"}, env.catalog.Entries())

	rec = env.do(http.MethodGet, "/get-songs-list", "", admin())
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.CatalogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "New", list[0].Title)
	assert.Equal(t, "1:05", list[0].Duration)

	rec = env.do(http.MethodGet, "/delete-song", "", admin("file-name", "new.json"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.catalog.IsEmpty())

	rec = env.do(http.MethodGet, "/delete-song", "", admin("file-name", "new.json"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(http.MethodPost, "/upload-song", `{}`, admin("file-name", "../escape.json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/upload-song", `not json`, admin("file-name", "bad.json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.True(t, env.catalog.IsEmpty())
}

func TestUpdateSongsListPicksUpNewFiles(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.source.Dir(), "late.json"), []byte(`{}`), 0644))
	assert.True(t, env.catalog.IsEmpty())

	rec := env.do(http.MethodGet, "/update-songs-list", "", admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"late.json"}, env.catalog.Entries())
}

func TestRestartPlayerAndStatus(t *testing.T) {
	env := newTestEnv(t, nil, map[string]string{"a.json": `{"title":"A","duration":"0:30"}`})

	rec := env.do(http.MethodGet, "/restart-player", "", admin())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "player restarted", rec.Body.String())

	require.Eventually(t, func() bool {
		_, ok := env.scheduler.Snapshot()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(http.MethodGet, "/api/status", "", admin())
	require.Equal(t, http.StatusOK, rec.Code)
	var st radio.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "running", st.State)
	require.NotNil(t, st.Track)
	assert.Equal(t, "a.json", st.Track.Name)
	assert.Equal(t, 30, st.Track.Duration)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodGet, "/api/history", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	history := &fakeHistory{rows: []*model.PlayHistory{
		{ID: 2, TrackName: "b.json"},
		{ID: 1, TrackName: "a.json"},
	}}
	env = newTestEnv(t, history, nil)
	rec = env.do(http.MethodGet, "/api/history?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []model.PlayHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b.json", rows[0].TrackName)
}

func TestBackgroundImagesServed(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.bgDir, storage.BackgroundName(1)), []byte("jpeg"), 0644))

	rec := env.do(http.MethodGet, "/static/images/background/image-1.jpg", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	rec := env.do(http.MethodOptions, "/get-song", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
