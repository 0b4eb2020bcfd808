package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type BackupCommand struct {
	libraryFlags
	names []string
	prune bool
	out   io.Writer
}

func NewBackupCommand() *BackupCommand { return &BackupCommand{out: os.Stdout} }

func (c *BackupCommand) Name() string { return "backup" }

func (c *BackupCommand) Desc() string {
	return "将游戏文件备份到 S3 存储桶"
}

func (c *BackupCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringSliceVar(&c.names, "name", nil, "只备份指定游戏，默认备份全部")
	f.BoolVar(&c.prune, "prune", false, "删除存储桶中已不存在于本地的文件")
}

func (c *BackupCommand) PreRun(ctx context.Context) error {
	if err := c.check("backup"); err != nil {
		return err
	}
	if err := Config().ValidateS3(); err != nil && storage.DefaultClient() == nil {
		return err
	}
	logutil.GetLogger(ctx).Info("starting backup",
		zap.String("dir", c.root()),
		zap.Strings("names", c.names),
		zap.Bool("prune", c.prune),
	)
	return nil
}

func (c *BackupCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	store, err := storageClient(ctx)
	if err != nil {
		return err
	}
	repo := c.repository(ctx, c.out)

	names := c.names
	if len(names) == 0 {
		list, err := repo.Scan(ctx)
		if err != nil {
			return err
		}
		for _, item := range list {
			names = append(names, item.BaseName)
		}
	}

	prefix := Config().S3.Prefix
	uploaded := make(map[string]struct{})
	var total int64
	for _, name := range names {
		name = strings.TrimSpace(name)
		files, err := repo.Files(ctx, name)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("backup %s: %w", name, library.ErrNotFound)
		}
		for _, path := range files {
			key := storage.ObjectKey(prefix, library.GameDirName, filepath.Base(path))
			if err := store.UploadFile(ctx, key, path, contentType(path)); err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			uploaded[key] = struct{}{}
			if info, err := os.Stat(path); err == nil {
				total += info.Size()
			}
			logger.Debug("file uploaded", zap.String("key", key))
		}
		fmt.Fprintf(c.out, "backed up %s (%d files)\n", name, len(files))
	}

	pruned := 0
	if c.prune {
		pruned, err = c.pruneRemote(ctx, store, repo.Layout(), uploaded)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "uploaded %d files, %s, pruned %d\n", len(uploaded), humanize.Bytes(uint64(total)), pruned)
	logger.Info("backup completed",
		zap.Int("entries", len(names)),
		zap.Int("files", len(uploaded)),
		zap.Int("pruned", pruned),
	)
	return nil
}

// pruneRemote deletes objects that were not part of this backup. With --name
// only objects owned by the named entries are candidates. Ownership is decided
// against local entries and entries that only exist remotely.
func (c *BackupCommand) pruneRemote(ctx context.Context, store storage.Client, layout library.Layout, uploaded map[string]struct{}) (int, error) {
	prefix := storage.ObjectKey(Config().S3.Prefix, library.GameDirName) + "/"
	keys, err := store.ListKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	stale := make([]string, 0)
	for _, key := range keys {
		if _, ok := uploaded[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(c.names) > 0 && len(stale) > 0 {
		all := make([]string, 0, len(keys))
		for _, key := range keys {
			all = append(all, strings.TrimPrefix(key, prefix))
		}
		remoteBases := library.MetadataBases(all)
		byName := make(map[string]string, len(stale))
		remote := make([]string, 0, len(stale))
		for _, key := range stale {
			name := strings.TrimPrefix(key, prefix)
			byName[name] = key
			remote = append(remote, name)
		}
		stale = stale[:0]
		for _, base := range c.names {
			owned, err := layout.FilterOwnedAmong(strings.TrimSpace(base), remote, remoteBases)
			if err != nil {
				return 0, err
			}
			for _, name := range owned {
				stale = append(stale, byName[name])
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := store.DeleteKeys(ctx, stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (c *BackupCommand) PostRun(ctx context.Context) error { return nil }

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func init() {
	RegisterRunner("backup", func() IRunner { return NewBackupCommand() })
}
