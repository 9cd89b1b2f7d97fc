// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	debugMode bool
	dataDir   string
	port      string
)

// rootCmd 不带子命令时启动服务器
var rootCmd = &cobra.Command{
	Use:   "storymap",
	Short: "StoryMap - plot threads, scenes and their graph",
	Long: `StoryMap serves story maps over HTTP: plot threads, ordered scenes and
the node/edge graph projected from them, with JSON/CSV import and export.

Run without arguments to start the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Convert a story map between JSON and CSV",
	Long: `Reads IN and writes OUT, choosing each format from the file extension.

Converting to CSV keeps scenes only; CSV has no thread colors or names.

Example:
  storymap convert heist.json heist.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print threads and scenes of a JSON or CSV file as tables",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var graphCmd = &cobra.Command{
	Use:   "graph FILE",
	Short: "Print the projected nodes and edges as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&debugMode, "debug", false, "enable debug logging")
		cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
		cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	}
	rootCmd.AddCommand(serveCmd, convertCmd, inspectCmd, graphCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
