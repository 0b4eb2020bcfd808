package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/metadata"
	"github.com/xxxsen/eversd/internal/model"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ImportCommand struct {
	libraryFlags
	src       string
	platform  string
	core      string
	dryRun    bool
	overwrite bool
	out       io.Writer
}

// ImportSummary counts the outcome of an import run.
type ImportSummary struct {
	Created int
	Partial int
	Skipped int
	Failed  int
}

func NewImportCommand() *ImportCommand { return &ImportCommand{out: os.Stdout} }

func (c *ImportCommand) Name() string { return "import" }

func (c *ImportCommand) Desc() string {
	return "从 gamelist.xml 或 Pegasus metadata 批量导入游戏"
}

func (c *ImportCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringVar(&c.src, "src", "", "gamelist.xml 或 metadata.pegasus.txt 路径")
	f.StringVar(&c.platform, "platform", "", "平台名称，默认使用元数据中的系统名")
	f.StringVar(&c.core, "core", "", "为导入的游戏指定模拟器核心")
	f.BoolVar(&c.dryRun, "dryrun", false, "只打印将要导入的游戏，不写入")
	f.BoolVar(&c.overwrite, "overwrite", false, "同名游戏已存在时覆盖")
}

func (c *ImportCommand) PreRun(ctx context.Context) error {
	if err := c.check("import"); err != nil {
		return err
	}
	if strings.TrimSpace(c.src) == "" {
		return errors.New("import requires --src")
	}
	logutil.GetLogger(ctx).Info("starting import",
		zap.String("src", c.src),
		zap.String("dir", c.root()),
		zap.Bool("dryrun", c.dryRun),
	)
	return nil
}

func (c *ImportCommand) Run(ctx context.Context) error {
	summary, err := c.importFrom(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created: %d, partial: %d, skipped: %d, failed: %d\n",
		summary.Created, summary.Partial, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d game(s) failed to import", summary.Failed)
	}
	return nil
}

func (c *ImportCommand) importFrom(ctx context.Context) (*ImportSummary, error) {
	logger := logutil.GetLogger(ctx)
	src, err := metadata.Load(c.src)
	if err != nil {
		return nil, err
	}
	platform := c.platform
	if platform == "" {
		platform = src.Platform
	}

	if !c.dryRun {
		lock, err := acquireLibraryLock(ctx, c.root())
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	repo := c.repository(ctx, c.out)
	summary := &ImportSummary{}
	for _, game := range src.Games {
		if !regularFile(game.RomPath) {
			fmt.Fprintf(c.out, "skip %q: rom %s not found\n", game.Title, game.RomPath)
			summary.Skipped++
			continue
		}
		if c.dryRun {
			fmt.Fprintf(c.out, "would import %q from %s\n", game.Title, game.RomPath)
			summary.Created++
			continue
		}
		res, err := repo.Create(ctx, &library.CreateRequest{
			Title:       game.Title,
			Platform:    platform,
			Core:        c.core,
			Genre:       game.Genre,
			ReleaseDate: game.ReleaseDate,
			Players:     model.ParsePlayers(game.Players),
			Description: game.Description,
			Publisher:   game.Publisher,
			Developer:   game.Developer,
			RomPath:     game.RomPath,
			BoxartPath:  existingOrEmpty(game.BoxartPath),
			BannerPath:  existingOrEmpty(game.BannerPath),
			Overwrite:   c.overwrite || Config().Library.Overwrite,
		})
		if err != nil {
			if errors.Is(err, library.ErrConflict) {
				summary.Skipped++
			} else {
				summary.Failed++
			}
			logger.Warn("import game failed",
				zap.String("title", game.Title),
				zap.String("kind", library.Kind(err)),
				zap.Error(err),
			)
			fmt.Fprintf(c.out, "failed %q: %v\n", game.Title, err)
			continue
		}
		summary.Created++
		if res.Partial() {
			summary.Partial++
			printWarnings(c.out, res)
		}
	}
	logger.Info("import completed",
		zap.String("format", src.Format),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (c *ImportCommand) PostRun(ctx context.Context) error { return nil }

func regularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func existingOrEmpty(path string) string {
	if regularFile(path) {
		return path
	}
	return ""
}

func init() {
	RegisterRunner("import", func() IRunner { return NewImportCommand() })
}
