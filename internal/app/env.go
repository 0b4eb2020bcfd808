package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/eversd/internal/assetsource"
	"github.com/xxxsen/eversd/internal/config"
	appdb "github.com/xxxsen/eversd/internal/db"
	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/naming"
	"github.com/xxxsen/eversd/internal/scraper"
	"github.com/xxxsen/eversd/internal/storage"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var currentConfig = config.Default()

// SetConfig installs the loaded configuration for all runners.
func SetConfig(cfg *config.Config) {
	if cfg != nil {
		currentConfig = cfg
	}
}

// Config returns the active configuration.
func Config() *config.Config {
	return currentConfig
}

// OpenCache opens the sqlite cache when one is configured and installs it as
// the default database. The returned func closes it.
func OpenCache(ctx context.Context) (func(), error) {
	path := strings.TrimSpace(Config().Cache.DBPath)
	if path == "" {
		return func() {}, nil
	}
	db, err := appdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	appdb.SetDefault(db)
	logutil.GetLogger(ctx).Debug("cache db opened", zap.String("path", path))
	return func() {
		appdb.SetDefault(nil)
		_ = db.Close()
	}, nil
}

// libraryFlags is embedded by every runner that works on a library root.
type libraryFlags struct {
	dir string
}

func (l *libraryFlags) bind(f *pflag.FlagSet) {
	f.StringVar(&l.dir, "dir", "", "EverSD 根目录，默认使用配置 library.root")
}

func (l *libraryFlags) root() string {
	if strings.TrimSpace(l.dir) != "" {
		return filepath.Clean(l.dir)
	}
	return filepath.Clean(Config().Library.Root)
}

func (l *libraryFlags) check(cmd string) error {
	if strings.TrimSpace(l.dir) == "" && strings.TrimSpace(Config().Library.Root) == "" {
		return fmt.Errorf("%s requires --dir", cmd)
	}
	return nil
}

func (l *libraryFlags) repository(ctx context.Context, out io.Writer) *library.Repository {
	return library.New(l.root(),
		library.WithReporter(newCLIReporter(ctx, out)),
		library.WithDeriver(naming.Deriver{Transliterate: Config().Library.Transliterate}),
	)
}

func newFetcher() scraper.Fetcher {
	cfg := Config()
	var f scraper.Fetcher = scraper.NewVimmFetcher(cfg.Scraper.BaseURL, cfg.Scraper.UserAgent,
		time.Duration(cfg.Scraper.Timeout)*time.Second)
	if appdb.Default() != nil {
		f = scraper.NewCachedFetcher(f, appdb.ScrapeCacheDao, time.Duration(cfg.Cache.ScrapeTTL)*time.Second)
	}
	return f
}

func newResolver() *assetsource.Resolver {
	cfg := Config()
	return assetsource.NewResolver(cfg.Scraper.UserAgent, time.Duration(cfg.Scraper.Timeout)*time.Second)
}

// storageClient returns the configured default client or builds one from the
// s3 section.
func storageClient(ctx context.Context) (storage.Client, error) {
	if c := storage.DefaultClient(); c != nil {
		return c, nil
	}
	cfg := Config()
	if err := cfg.ValidateS3(); err != nil {
		return nil, err
	}
	client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	storage.SetDefaultClient(client)
	return client, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(path + " is not a directory")
	}
	return nil
}
