package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/model"
	"github.com/xxxsen/eversd/internal/naming"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	maxUploadMemory = 32 << 20
	shutdownTimeout = 10 * time.Second
)

type ServeCommand struct {
	libraryFlags
	addr      string
	uploadDir string
	server    *http.Server
	games     *gameServer
}

func NewServeCommand() *ServeCommand { return &ServeCommand{} }

func (c *ServeCommand) Name() string { return "serve" }

func (c *ServeCommand) Desc() string {
	return "启动 HTTP JSON 接口管理游戏库"
}

func (c *ServeCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringVar(&c.addr, "bind", "", "HTTP 监听地址，默认使用配置 serve.bind")
}

func (c *ServeCommand) PreRun(ctx context.Context) error {
	if err := c.check("serve"); err != nil {
		return err
	}
	if strings.TrimSpace(c.addr) == "" {
		c.addr = Config().Serve.Bind
	}
	gameDir := library.Layout{Root: c.root()}.GameDir()
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return fmt.Errorf("create game dir %s: %w", gameDir, err)
	}
	uploadDir, err := os.MkdirTemp("", "eversd_upload")
	if err != nil {
		return err
	}
	c.uploadDir = uploadDir
	return nil
}

// Run serves until the listener fails, ctx is cancelled or SIGINT/SIGTERM
// arrives. The upload directory is removed on every exit path.
func (c *ServeCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	defer c.removeUploadDir()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := acquireLibraryLock(ctx, c.root())
	if err != nil {
		return err
	}
	defer lock.Release()

	repo := library.New(c.root(),
		library.WithReporter(logReporter{ctx: ctx}),
		library.WithDeriver(naming.Deriver{Transliterate: Config().Library.Transliterate}),
	)
	c.games = newGameServer(repo, c.uploadDir)
	watcher, err := c.games.watch(ctx)
	if err != nil {
		return err
	}
	defer watcher.Close()

	srv := &http.Server{
		Addr:    c.addr,
		Handler: c.games.Handler(),
	}
	c.server = srv

	logger.Info("http api ready",
		zap.String("addr", srv.Addr),
		zap.String("root", c.root()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		logger.Info("http api shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("shutdown http api failed", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ServeCommand) removeUploadDir() {
	if c.uploadDir != "" {
		_ = os.RemoveAll(c.uploadDir)
	}
}

func (c *ServeCommand) PostRun(ctx context.Context) error {
	if c.server != nil {
		_ = c.server.Close()
	}
	c.removeUploadDir()
	return nil
}

// gameServer exposes a repository over http. Writes are serialized and the
// scan list is cached until the game directory changes.
type gameServer struct {
	repo      *library.Repository
	uploadDir string
	scanFn    func(ctx context.Context) ([]model.EntrySummary, error)

	writeMu sync.Mutex

	listMu sync.RWMutex
	list   []model.EntrySummary
	// gen counts invalidations so a scan that raced one is not cached.
	gen uint64
}

type gameResponse struct {
	BaseName string   `json:"base_name"`
	Warnings []string `json:"warnings,omitempty"`
}

func newGameResponse(res *library.Result) *gameResponse {
	out := &gameResponse{BaseName: res.BaseName}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func newGameServer(repo *library.Repository, uploadDir string) *gameServer {
	return &gameServer{repo: repo, uploadDir: uploadDir, scanFn: repo.Scan}
}

func (s *gameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/games", s.handleList)
	mux.HandleFunc("POST /api/games", s.handleCreate)
	mux.HandleFunc("GET /api/games/{name}", s.handleDetails)
	mux.HandleFunc("POST /api/games/{name}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/games/{name}", s.handleDelete)
	mux.HandleFunc("GET /api/games/{name}/{asset}", s.handleAsset)
	mux.HandleFunc("GET /api/cores", s.handleCores)
	return mux
}

// watch invalidates the cached list whenever the game directory changes.
func (s *gameServer) watch(ctx context.Context) (*fsnotify.Watcher, error) {
	logger := logutil.GetLogger(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := s.repo.Layout().GameDir()
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				logger.Debug("game dir changed", zap.String("name", ev.Name), zap.String("op", ev.Op.String()))
				s.invalidate()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch game dir failed", zap.Error(err))
				s.invalidate()
			}
		}
	}()
	return watcher, nil
}

func (s *gameServer) invalidate() {
	s.listMu.Lock()
	s.list = nil
	s.gen++
	s.listMu.Unlock()
}

func (s *gameServer) snapshot(ctx context.Context) ([]model.EntrySummary, error) {
	s.listMu.RLock()
	list, gen := s.list, s.gen
	s.listMu.RUnlock()
	if list != nil {
		return list, nil
	}
	list, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	s.listMu.Lock()
	if s.gen == gen {
		s.list = list
	}
	s.listMu.Unlock()
	return list, nil
}

func (s *gameServer) scan(ctx context.Context) ([]model.EntrySummary, error) {
	list, err := s.scanFn(ctx)
	if err != nil {
		return nil, err
	}
	library.SortByTitle(list)
	return list, nil
}

func (s *gameServer) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, list)
}

func (s *gameServer) handleDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.repo.Details(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newEntryView(details))
}

func (s *gameServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	details, err := s.repo.Details(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	var path string
	switch r.PathValue("asset") {
	case "boxart":
		path = details.BoxartPath
	case "banner":
		path = details.BannerPath
	default:
		http.NotFound(w, r)
		return
	}
	if path == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
	http.ServeFile(w, r, path)
}

func (s *gameServer) handleCores(w http.ResponseWriter, r *http.Request) {
	cores, err := s.repo.Cores(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cores)
}

func (s *gameServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse form failed: %v", err), http.StatusBadRequest)
		return
	}
	defer form.cleanup()

	mapping, err := parseMappings(form.values("map"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := &library.CreateRequest{
		Title:       form.value("title"),
		Platform:    form.value("platform"),
		Core:        form.value("core"),
		LaunchType:  form.value("launch_type"),
		Genre:       form.value("genre"),
		ReleaseDate: form.value("release_date"),
		Players:     model.ParsePlayers(form.value("players")),
		Description: form.value("description"),
		Publisher:   form.value("publisher"),
		Developer:   form.value("developer"),
		Mapping:     mapping,
		RomPath:     form.files["rom"],
		BoxartPath:  form.files["boxart"],
		BannerPath:  form.files["banner"],
		Overwrite:   Config().Library.Overwrite,
	}
	if v, ok := form.lookup("overwrite"); ok {
		req.Overwrite, _ = strconv.ParseBool(v)
	}

	s.writeMu.Lock()
	res, err := s.repo.Create(r.Context(), req)
	s.writeMu.Unlock()
	s.invalidate()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newGameResponse(res))
}

func (s *gameServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse form failed: %v", err), http.StatusBadRequest)
		return
	}
	defer form.cleanup()

	mapping, err := parseMappings(form.values("map"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := &library.UpdateRequest{
		BaseName:    r.PathValue("name"),
		Title:       form.optional("title"),
		Platform:    form.optional("platform"),
		Core:        form.optional("core"),
		LaunchType:  form.optional("launch_type"),
		Genre:       form.optional("genre"),
		ReleaseDate: form.optional("release_date"),
		Description: form.optional("description"),
		Publisher:   form.optional("publisher"),
		Developer:   form.optional("developer"),
		Mapping:     mapping,
		RomPath:     form.files["rom"],
		BoxartPath:  form.files["boxart"],
		BannerPath:  form.files["banner"],
	}
	if v, ok := form.lookup("players"); ok {
		req.Players = library.Int(model.ParsePlayers(v))
	}

	s.writeMu.Lock()
	res, err := s.repo.Update(r.Context(), req)
	s.writeMu.Unlock()
	s.invalidate()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newGameResponse(res))
}

func (s *gameServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.writeMu.Lock()
	files, err := s.repo.Files(r.Context(), name)
	var ok bool
	if err == nil {
		ok, err = s.repo.Delete(r.Context(), name)
	}
	s.writeMu.Unlock()
	s.invalidate()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if !ok {
		writeError(r.Context(), w, fmt.Errorf("delete %s: %w", name, library.ErrNotFound))
		return
	}
	forgetHashes(r.Context(), files)
	w.WriteHeader(http.StatusNoContent)
}

// uploadForm holds the parsed form values and the staged upload files.
type uploadForm struct {
	form  map[string][]string
	files map[string]string
}

func (f *uploadForm) lookup(key string) (string, bool) {
	vs, ok := f.form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[0]), true
}

func (f *uploadForm) value(key string) string {
	v, _ := f.lookup(key)
	return v
}

func (f *uploadForm) values(key string) []string { return f.form[key] }

func (f *uploadForm) optional(key string) *string {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	return library.String(v)
}

func (f *uploadForm) cleanup() {
	for _, p := range f.files {
		_ = os.Remove(p)
	}
}

// parseForm reads a multipart (or urlencoded) request and stages the rom,
// boxart and banner file parts under uuid names that keep the extension.
func (s *gameServer) parseForm(r *http.Request) (*uploadForm, error) {
	out := &uploadForm{files: map[string]string{}}
	err := r.ParseMultipartForm(maxUploadMemory)
	switch {
	case err == nil:
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	out.form = r.Form
	if r.MultipartForm == nil {
		return out, nil
	}
	for _, field := range []string{"rom", "boxart", "banner"} {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		path, err := s.stage(headers[0])
		if err != nil {
			out.cleanup()
			return nil, fmt.Errorf("stage %s: %w", field, err)
		}
		out.files[field] = path
	}
	return out, nil
}

func (s *gameServer) stage(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	dest := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, library.ErrParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logutil.GetLogger(ctx).Error("request failed", zap.Error(err))
	}
	writeJSONResponse(w, status, &errorResponse{Error: err.Error(), Kind: library.Kind(err)})
}

func writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	RegisterRunner("serve", func() IRunner { return NewServeCommand() })
}
