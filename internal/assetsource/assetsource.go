// Package assetsource turns a user supplied artwork or rom reference into a
// local file the library can read.
package assetsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var ErrMissing = errors.New("asset source missing")

const defaultMaxSize = 64 << 20

// Source is a resolved local file. Close removes it when it was downloaded.
type Source struct {
	Path       string
	Downloaded bool
}

func (s *Source) Close() error {
	if s == nil || !s.Downloaded {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resolver downloads remote references into TempDir.
type Resolver struct {
	Client    *http.Client
	UserAgent string
	Referer   string
	TempDir   string
	MaxSize   int64
}

func NewResolver(userAgent string, timeout time.Duration) *Resolver {
	return &Resolver{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// IsRemote reports whether ref is an http(s) url.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns a local file for ref. An empty ref resolves to nil.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if !IsRemote(ref) {
		info, err := os.Stat(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissing, ref, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrMissing, ref)
		}
		return &Source{Path: ref}, nil
	}
	return r.download(ctx, ref)
}

func (r *Resolver) download(ctx context.Context, ref string) (*Source, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("url", ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", ref, err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	if r.Referer != "" {
		req.Header.Set("Referer", r.Referer)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %d", ref, resp.StatusCode)
	}

	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	dst := filepath.Join(dir, "eversd-"+uuid.NewString()+remoteExt(ref))
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create temp %s: %w", dst, err)
	}
	limit := r.MaxSize
	if limit <= 0 {
		limit = defaultMaxSize
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = fmt.Errorf("larger than %s", humanize.Bytes(uint64(limit)))
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	logger.Info("asset downloaded", zap.String("path", dst), zap.String("size", humanize.Bytes(uint64(n))))
	return &Source{Path: dst, Downloaded: true}, nil
}

// remoteExt keeps the extension of the url path so rom downloads keep their
// type. Query strings are ignored.
func remoteExt(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return strings.ToLower(ext)
}
