package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/eversd/internal/library"
	"github.com/xxxsen/eversd/internal/model"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type VerifyCommand struct {
	libraryFlags
	output string
	out    io.Writer
}

func NewVerifyCommand() *VerifyCommand {
	return &VerifyCommand{out: os.Stdout}
}

func (c *VerifyCommand) Name() string { return "verify" }

func (c *VerifyCommand) Desc() string {
	return "检查游戏库：ROM 缺失、封面不一致、重复 ROM 与孤立文件"
}

func (c *VerifyCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringVar(&c.output, "output", "", "输出 JSON 文件路径，为空时打印表格")
}

func (c *VerifyCommand) PreRun(ctx context.Context) error {
	if err := c.check("verify"); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("starting verify",
		zap.String("dir", c.root()),
		zap.String("output", c.output),
	)
	return nil
}

func (c *VerifyCommand) Run(ctx context.Context) error {
	repo := c.repository(ctx, c.out)
	output, err := verifyLibrary(ctx, repo)
	if err != nil {
		return err
	}

	if strings.TrimSpace(c.output) != "" {
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal verify output: %w", err)
		}
		if err := os.WriteFile(c.output, data, 0o644); err != nil {
			return fmt.Errorf("write verify output %s: %w", c.output, err)
		}
	} else if err := printVerify(c.out, output); err != nil {
		return err
	}

	logutil.GetLogger(ctx).Info("verify completed",
		zap.Int("total", output.Total),
		zap.Int("problems", len(output.CaseList)),
		zap.Int("duplicates", len(output.Duplicates)),
		zap.Int("orphans", len(output.Orphans)),
	)
	return nil
}

func (c *VerifyCommand) PostRun(ctx context.Context) error { return nil }

func verifyLibrary(ctx context.Context, repo *library.Repository) (*model.VerifyOutput, error) {
	logger := logutil.GetLogger(ctx)
	list, err := repo.Scan(ctx)
	if err != nil {
		return nil, err
	}

	output := &model.VerifyOutput{
		Total:      len(list),
		CaseList:   []model.VerifyCase{},
		Duplicates: []model.DuplicateRom{},
	}
	byHash := make(map[string][]string)
	for _, item := range list {
		state, err := repo.State(ctx, item.BaseName)
		if err != nil {
			return nil, err
		}
		vc := model.VerifyCase{Name: item.BaseName, Title: item.Title, State: state, Reason: []string{}}
		if !item.Valid {
			vc.Reason = append(vc.Reason, "metadata unreadable")
			output.CaseList = append(output.CaseList, vc)
			continue
		}

		details, err := repo.Details(ctx, item.BaseName)
		if err != nil {
			return nil, err
		}
		if details.RomPath == "" {
			vc.Reason = append(vc.Reason, "rom missing")
		} else {
			hash, err := cachedFileMD5(ctx, details.RomPath)
			if err != nil {
				logger.Warn("hash rom failed", zap.String("path", details.RomPath), zap.Error(err))
				vc.Reason = append(vc.Reason, "rom unreadable")
			} else {
				byHash[hash] = append(byHash[hash], item.BaseName)
			}
		}
		if details.BoxartPath == "" {
			vc.Reason = append(vc.Reason, "boxart missing")
		} else if reason := checkBoxartPair(ctx, repo.Layout(), item.BaseName); reason != "" {
			vc.Reason = append(vc.Reason, reason)
		}
		if details.Meta.Title == "" {
			vc.Reason = append(vc.Reason, "empty title")
		}
		if core := details.Meta.Core; core != "" && !coreExists(repo.Layout().Root, core) {
			vc.Reason = append(vc.Reason, "core missing:"+details.Meta.Core)
		}
		if len(vc.Reason) > 0 {
			output.CaseList = append(output.CaseList, vc)
		}
	}

	for hash, names := range byHash {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		output.Duplicates = append(output.Duplicates, model.DuplicateRom{MD5: hash, Names: names})
	}
	sort.Slice(output.Duplicates, func(i, j int) bool {
		return output.Duplicates[i].Names[0] < output.Duplicates[j].Names[0]
	})

	orphans, err := repo.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	output.Orphans = orphans
	return output, nil
}

// checkBoxartPair reports a problem when only one of the two box art files
// exists or the two differ.
func checkBoxartPair(ctx context.Context, layout library.Layout, base string) string {
	main, alt := layout.BoxartPath(base), layout.BoxartAltPath(base)
	hasMain, hasAlt := fileExists(main), fileExists(alt)
	switch {
	case hasMain && !hasAlt:
		return "boxart copy missing:" + library.BoxartAltName(base)
	case !hasMain && hasAlt:
		return "boxart missing:" + library.BoxartName(base)
	case !hasMain && !hasAlt:
		return ""
	}
	a, err := cachedFileMD5(ctx, main)
	if err != nil {
		return "boxart unreadable"
	}
	b, err := cachedFileMD5(ctx, alt)
	if err != nil {
		return "boxart unreadable"
	}
	if a != b {
		return "boxart copies differ"
	}
	return ""
}

func printVerify(w io.Writer, output *model.VerifyOutput) error {
	rows := make([][]string, 0, len(output.CaseList))
	for _, vc := range output.CaseList {
		rows = append(rows, []string{vc.Name, vc.Title, string(vc.State), strings.Join(vc.Reason, "; ")})
	}
	if err := writeTable(w, []string{"Name", "Title", "State", "Problems"}, rows, nil); err != nil {
		return err
	}
	for _, dup := range output.Duplicates {
		fmt.Fprintf(w, "duplicate rom %s: %s\n", dup.MD5, strings.Join(dup.Names, ", "))
	}
	for _, group := range output.Orphans {
		fmt.Fprintf(w, "orphan files (%s): %s\n", group.BaseName, strings.Join(group.Files, ", "))
	}
	fmt.Fprintf(w, "%d entries, %d with problems\n", output.Total, len(output.CaseList))
	return nil
}

// coreExists accepts the core identifier with or without its .so suffix.
func coreExists(root, core string) bool {
	return fileExists(filepath.Join(root, core)) || fileExists(filepath.Join(root, core+".so"))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	RegisterRunner("verify", func() IRunner { return NewVerifyCommand() })
}
