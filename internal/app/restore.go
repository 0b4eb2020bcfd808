package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/model"
	"github.com/xxxsen/eversd/internal/storage"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type RestoreCommand struct {
	libraryFlags
	name      string
	overwrite bool
	out       io.Writer
}

func NewRestoreCommand() *RestoreCommand { return &RestoreCommand{out: os.Stdout} }

func (c *RestoreCommand) Name() string { return "restore" }

func (c *RestoreCommand) Desc() string {
	return "从 S3 存储桶恢复指定游戏"
}

func (c *RestoreCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringVar(&c.name, "name", "", "要恢复的游戏标识")
	f.BoolVar(&c.overwrite, "overwrite", false, "本地已存在该游戏时覆盖")
}

func (c *RestoreCommand) PreRun(ctx context.Context) error {
	if err := c.check("restore"); err != nil {
		return err
	}
	if strings.TrimSpace(c.name) == "" {
		return errors.New("restore requires --name")
	}
	if err := Config().ValidateS3(); err != nil && storage.DefaultClient() == nil {
		return err
	}
	return nil
}

func (c *RestoreCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	name := strings.TrimSpace(c.name)
	store, err := storageClient(ctx)
	if err != nil {
		return err
	}

	lock, err := acquireLibraryLock(ctx, c.root())
	if err != nil {
		return err
	}
	defer lock.Release()

	repo := c.repository(ctx, c.out)
	state, err := repo.State(ctx, name)
	if err != nil {
		return err
	}
	if state != model.StateAbsent && !(c.overwrite || Config().Library.Overwrite) {
		return fmt.Errorf("restore %s: entry is %s locally, use --overwrite: %w", name, state, library.ErrConflict)
	}

	prefix := storage.ObjectKey(Config().S3.Prefix, library.GameDirName) + "/"
	keys, err := store.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	remote := make([]string, 0, len(keys))
	for _, key := range keys {
		remote = append(remote, strings.TrimPrefix(key, prefix))
	}
	owned, err := repo.Layout().FilterOwnedAmong(name, remote, library.MetadataBases(remote))
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return fmt.Errorf("restore %s: no objects under %s: %w", name, prefix, library.ErrNotFound)
	}

	gameDir := repo.Layout().GameDir()
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return fmt.Errorf("create game dir %s: %w", gameDir, err)
	}
	restored := make([]string, 0, len(owned))
	for _, file := range owned {
		dest := filepath.Join(gameDir, file)
		if err := store.DownloadToFile(ctx, prefix+file, dest); err != nil {
			return fmt.Errorf("download %s: %w", file, err)
		}
		restored = append(restored, dest)
		logger.Debug("file restored", zap.String("path", dest))
	}
	forgetHashes(ctx, restored)

	state, err = repo.State(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "restored %s (%d files, %s)\n", name, len(restored), state)
	logger.Info("restore completed",
		zap.String("name", name),
		zap.Int("files", len(restored)),
		zap.String("state", string(state)),
	)
	return nil
}

func (c *RestoreCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("restore", func() IRunner { return NewRestoreCommand() })
}
