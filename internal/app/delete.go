package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type DeleteCommand struct {
	libraryFlags
	names []string
	out   io.Writer
}

func NewDeleteCommand() *DeleteCommand { return &DeleteCommand{out: os.Stdout} }

func (c *DeleteCommand) Name() string { return "delete" }

func (c *DeleteCommand) Desc() string {
	return "删除游戏及其全部文件 (元数据、ROM、封面、横幅)"
}

func (c *DeleteCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringSliceVar(&c.names, "name", nil, "要删除的游戏标识，可重复指定")
}

func (c *DeleteCommand) PreRun(ctx context.Context) error {
	if err := c.check("delete"); err != nil {
		return err
	}
	if len(c.names) == 0 {
		return errors.New("delete requires --name")
	}
	return nil
}

func (c *DeleteCommand) Run(ctx context.Context) error {
	lock, err := acquireLibraryLock(ctx, c.root())
	if err != nil {
		return err
	}
	defer lock.Release()

	repo := c.repository(ctx, c.out)
	var missing []string
	for _, name := range c.names {
		name = strings.TrimSpace(name)
		files, err := repo.Files(ctx, name)
		if err != nil {
			return err
		}
		ok, err := repo.Delete(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		forgetHashes(ctx, files)
	}
	if len(missing) > 0 {
		logutil.GetLogger(ctx).Warn("nothing deleted for some names", zap.Strings("names", missing))
		return fmt.Errorf("no files found for %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *DeleteCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("delete", func() IRunner { return NewDeleteCommand() })
}
