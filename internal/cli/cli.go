package cli

import (
	"context"

	"github.com/xxxsen/eversd/internal/app"
	"github.com/xxxsen/eversd/internal/config"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var (
	configPath string
	closeCache = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "eversd",
	Short:         "Manage the game library on an EverSD cartridge",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.LoadFirst(append([]string{configPath}, config.DefaultSearchPaths...)...)
		if err != nil {
			return err
		}
		app.SetConfig(cfg)
		logger.Init(cfg.Log.File, cfg.Log.Level, 0, 0, 0, cfg.Log.Console || cfg.Log.File == "")
		closer, err := app.OpenCache(ctx)
		if err != nil {
			return err
		}
		closeCache = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeCache()
	},
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		closeCache()
		logutil.GetLogger(context.Background()).Error("exec cmd failed", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径 (json 或 yaml)")
	for _, r := range app.RunnerList() {
		runner := app.MustResolveRunner(r)
		subcmd := &cobra.Command{
			Use:   runner.Name(),
			Short: runner.Desc(),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				if err := runner.PreRun(ctx); err != nil {
					return err
				}
				if err := runner.Run(ctx); err != nil {
					return err
				}
				return runner.PostRun(ctx)
			},
		}
		runner.Init(subcmd.Flags())
		rootCmd.AddCommand(subcmd)
	}
}
