package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	appdb "github.com/xxxsen/eversd/internal/db"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type MaintainCacheCommand struct {
	dryRun bool
	out    io.Writer
}

func NewMaintainCacheCommand() *MaintainCacheCommand {
	return &MaintainCacheCommand{dryRun: true, out: os.Stdout}
}

func (c *MaintainCacheCommand) Name() string { return "maintain-cache" }

func (c *MaintainCacheCommand) Desc() string {
	return "清理缓存数据库中失效的文件哈希与过期的抓取结果"
}

func (c *MaintainCacheCommand) Init(f *pflag.FlagSet) {
	f.BoolVar(&c.dryRun, "dryrun", true, "是否只是演练（默认 true）")
}

func (c *MaintainCacheCommand) PreRun(ctx context.Context) error {
	if appdb.Default() == nil {
		return errors.New("maintain-cache requires cache.db_path in config")
	}
	return nil
}

func (c *MaintainCacheCommand) Run(ctx context.Context) error {
	stale, err := c.cleanupHashCache(ctx)
	if err != nil {
		return err
	}
	var expired int64
	if !c.dryRun {
		ttl := time.Duration(Config().Cache.ScrapeTTL) * time.Second
		expired, err = appdb.ScrapeCacheDao.DeleteExpired(ctx, ttl)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "stale hashes: %d, expired scrape results removed: %d (dryrun=%v)\n", stale, expired, c.dryRun)
	logutil.GetLogger(ctx).Info("maintain-cache completed",
		zap.Int("stale_hashes", stale),
		zap.Int64("expired_scrapes", expired),
		zap.Bool("dry_run", c.dryRun),
	)
	return nil
}

func (c *MaintainCacheCommand) PostRun(ctx context.Context) error { return nil }

// cleanupHashCache drops rows whose file is gone or changed since hashing.
func (c *MaintainCacheCommand) cleanupHashCache(ctx context.Context) (int, error) {
	logger := logutil.GetLogger(ctx)
	entries, err := appdb.FileHashCacheDao.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list hash cache: %w", err)
	}

	stale := make([]string, 0)
	for _, entry := range entries {
		location := strings.TrimSpace(entry.Location)
		if location == "" {
			continue
		}
		info, err := os.Stat(location)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("hash cache target missing", zap.String("location", location))
			stale = append(stale, location)
		case err != nil:
			logger.Warn("hash cache stat failed", zap.String("location", location), zap.Error(err))
		case info.ModTime().UnixNano() != entry.ModTime || info.Size() != entry.Size:
			logger.Debug("hash cache target changed", zap.String("location", location))
			stale = append(stale, location)
		}
	}

	if len(stale) == 0 || c.dryRun {
		return len(stale), nil
	}

	const chunkSize = 200
	for start := 0; start < len(stale); start += chunkSize {
		end := start + chunkSize
		if end > len(stale) {
			end = len(stale)
		}
		if err := appdb.FileHashCacheDao.DeleteByLocations(ctx, stale[start:end]); err != nil {
			return 0, err
		}
	}
	logger.Info("hash cache entries deleted", zap.Int("count", len(stale)))
	return len(stale), nil
}

func init() {
	RegisterRunner("maintain-cache", func() IRunner { return NewMaintainCacheCommand() })
}
