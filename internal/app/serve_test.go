package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*gameServer, *httptest.Server, string) {
	t.Helper()
	useConfig(t, nil)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, library.GameDirName), 0o755))
	gs := newGameServer(library.New(root), t.TempDir())
	srv := httptest.NewServer(gs.Handler())
	t.Cleanup(srv.Close)
	return gs, srv, root
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, path := range files {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		fw, err := mw.CreateFormFile(field, filepath.Base(path))
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func postForm(t *testing.T, url string, fields, files map[string]string) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, fields, files)
	resp, err := http.Post(url, ct, body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestServeCreateListAndDetails(t *testing.T) {
	_, srv, _ := newTestServer(t)
	src := t.TempDir()
	rom := filepath.Join(src, "Castlevania.nes")
	writeTestFile(t, rom, "rom")
	box := filepath.Join(src, "box.png")
	writeTestImage(t, box, 100, 140)

	resp := postForm(t, srv.URL+"/api/games",
		map[string]string{"title": "Castlevania", "platform": "NES", "players": "1", "map": "a=b"},
		map[string]string{"rom": rom, "boxart": box})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created gameResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, "castlevania", created.BaseName)
	assert.Empty(t, created.Warnings)

	resp, err := http.Get(srv.URL + "/api/games")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []model.EntrySummary
	decodeBody(t, resp, &list)
	assert.Equal(t, []model.EntrySummary{{BaseName: "castlevania", Title: "Castlevania", Valid: true}}, list)

	resp, err = http.Get(srv.URL + "/api/games/castlevania")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view map[string]interface{}
	decodeBody(t, resp, &view)
	assert.Equal(t, "NES", view["platform"])
	assert.Equal(t, "castlevania.nes", view["rom_file"])
	assert.Equal(t, "b", view["mapping"].(map[string]interface{})["a"])

	resp, err = http.Get(srv.URL + "/api/games/castlevania/boxart")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(srv.URL + "/api/games/castlevania/banner")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeErrorStatus(t *testing.T) {
	_, srv, root := newTestServer(t)
	rom := filepath.Join(t.TempDir(), "game.gb")
	writeTestFile(t, rom, "rom")

	resp := postForm(t, srv.URL+"/api/games", map[string]string{"title": ""}, map[string]string{"rom": rom})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorResponse
	decodeBody(t, resp, &e)
	assert.Equal(t, "validation error", e.Kind)

	resp = postForm(t, srv.URL+"/api/games", map[string]string{"title": "Tetris"}, map[string]string{"rom": rom})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = postForm(t, srv.URL+"/api/games", map[string]string{"title": "Tetris"}, map[string]string{"rom": rom})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = postForm(t, srv.URL+"/api/games", map[string]string{"title": "Tetris", "overwrite": "true"}, map[string]string{"rom": rom})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	r, err := http.Get(srv.URL + "/api/games/nothing")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	writeTestFile(t, filepath.Join(root, library.GameDirName, "broken.json"), "{")
	r, err = http.Get(srv.URL + "/api/games/broken")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, r.StatusCode)

	r, err = http.Get(srv.URL + "/api/games/Bad-Name")
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestServeUpdateAndDelete(t *testing.T) {
	gs, srv, root := newTestServer(t)
	createEntry(t, gs.repo, "Doom", "doom.wad", "doom", false)

	resp := postForm(t, srv.URL+"/api/games/doom", map[string]string{"genre": "FPS", "players": "4"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	details, err := gs.repo.Details(context.Background(), "doom")
	require.NoError(t, err)
	assert.Equal(t, "FPS", details.Meta.Genre)
	assert.Equal(t, 4, details.Meta.Players)
	assert.Equal(t, "Doom", details.Meta.Title)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/games/doom", nil)
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusNoContent, r.StatusCode)
	entries, err := os.ReadDir(filepath.Join(root, library.GameDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)

	r, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestServeCores(t *testing.T) {
	_, srv, root := newTestServer(t)
	writeTestFile(t, filepath.Join(root, "snes9x.so"), "core")
	writeTestFile(t, filepath.Join(root, "readme.txt"), "x")

	r, err := http.Get(srv.URL + "/api/cores")
	require.NoError(t, err)
	defer r.Body.Close()
	var cores []string
	decodeBody(t, r, &cores)
	assert.Equal(t, []string{"snes9x.so"}, cores)
}

func TestServeWatchInvalidatesList(t *testing.T) {
	gs, _, _ := newTestServer(t)
	ctx := context.Background()
	watcher, err := gs.watch(ctx)
	require.NoError(t, err)
	defer watcher.Close()

	list, err := gs.snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	createEntry(t, gs.repo, "Outrun", "outrun.md", "rom", false)
	assert.Eventually(t, func() bool {
		list, err := gs.snapshot(ctx)
		return err == nil && len(list) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", library.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", library.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", library.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", library.ErrParse), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", library.ErrIO), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

func TestServeRunRemovesUploadDirOnListenError(t *testing.T) {
	useConfig(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cmd := &ServeCommand{libraryFlags: libraryFlags{dir: t.TempDir()}, addr: ln.Addr().String()}
	ctx := context.Background()
	require.NoError(t, cmd.PreRun(ctx))
	require.DirExists(t, cmd.uploadDir)

	assert.Error(t, cmd.Run(ctx))
	assert.NoDirExists(t, cmd.uploadDir)
}

func TestServeRunStopsOnCancel(t *testing.T) {
	useConfig(t, nil)
	cmd := &ServeCommand{libraryFlags: libraryFlags{dir: t.TempDir()}, addr: "127.0.0.1:0"}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cmd.PreRun(ctx))

	errCh := make(chan error, 1)
	go func() { errCh <- cmd.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.NoDirExists(t, cmd.uploadDir)
}

func TestServeSnapshotDropsScanRacingInvalidate(t *testing.T) {
	gs, _, root := newTestServer(t)
	ctx := context.Background()
	scan := gs.scanFn
	gs.scanFn = func(ctx context.Context) ([]model.EntrySummary, error) {
		list, err := scan(ctx)
		// a change lands after the directory was read
		gs.invalidate()
		return list, err
	}
	createEntry(t, gs.repo, "Zelda", "z.sfc", "rom", false)

	list, err := gs.snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	gs.listMu.RLock()
	assert.Nil(t, gs.list)
	gs.listMu.RUnlock()

	gs.scanFn = scan
	writeTestFile(t, filepath.Join(root, library.GameDirName, "metroid.json"), `{"romTitle":"Metroid","romFileName":"metroid.sfc"}`)
	list, err = gs.snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	gs.listMu.RLock()
	assert.Len(t, gs.list, 2)
	gs.listMu.RUnlock()
}
