// cmd/server/serve.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Corphon/StoryMap/internal/app"
	"github.com/Corphon/StoryMap/internal/config"
	"github.com/Corphon/StoryMap/internal/di"
)

// applyFlags 命令行参数优先于 .env 和环境变量
func applyFlags(cmd *cobra.Command) error {
	overrides := map[string]string{}
	if cmd.Flags().Changed("debug") {
		overrides["DEBUG_MODE"] = fmt.Sprint(debugMode)
	}
	if cmd.Flags().Changed("data-dir") {
		overrides["DATA_DIR"] = dataDir
	}
	if cmd.Flags().Changed("port") {
		overrides["PORT"] = port
	}
	for k, v := range overrides {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := applyFlags(cmd); err != nil {
		return err
	}

	base, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.InitConfig(base.DataDir); err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	a := app.New(config.GetCurrentConfig(), di.GetContainer())
	if err := a.Initialize(cmd.Context()); err != nil {
		return err
	}
	defer a.Cleanup()

	return a.Run(cmd.Context())
}
