package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/surrealdb/blocktree"
	"github.com/surrealdb/blocktree/pkg/logger"
	"github.com/surrealdb/blocktree/pkg/models"
)

var (
	version = "dev"
	commit  = "unknown"
)

type globalFlags struct {
	config  string
	envFile string
	baseURL string
	page    string
	logFile string
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "blockctl",
		Short: "Edit the block tree of a page from the command line",
		Long: `blockctl loads one page from a block server, applies a single action
through an optimistic session and prints the resulting tree.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "YAML config file")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file with BLOCKTREE_* settings (default .env)")
	pf.StringVar(&flags.baseURL, "base-url", "", "block server URL, overrides the config")
	pf.StringVarP(&flags.page, "page", "p", "", "page id")
	pf.StringVar(&flags.logFile, "log-file", "", "append JSON logs to this file instead of stderr")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	_ = root.MarkPersistentFlagRequired("page")

	root.AddCommand(
		newTreeCmd(&flags),
		newAddCmd(&flags),
		newIndentCmd(&flags),
		newOutdentCmd(&flags),
		newMoveCmd(&flags),
		newDeleteCmd(&flags),
		newUpdateCmd(&flags),
		newDuplicateCmd(&flags),
		newListenCmd(&flags),
	)
	return root
}

func (f *globalFlags) loadConfig() (blocktree.Config, error) {
	cfg := blocktree.NewConfig("")
	if f.config != "" {
		var err error
		if cfg, err = blocktree.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}

	var files []string
	if f.envFile != "" {
		files = append(files, f.envFile)
	}
	if err := cfg.LoadEnv(files...); err != nil {
		return cfg, err
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("no base url: set --base-url, base_url or BLOCKTREE_BASE_URL")
	}

	return cfg, nil
}

func (f *globalFlags) buildLogger() (*logger.LogData, error) {
	build := logger.New().WithLevel("warn")
	if f.verbose {
		build = build.WithLevel("debug")
	}
	if f.logFile != "" {
		return build.FromPath(f.logFile).Make()
	}
	return build.FromBuffer(os.Stderr).Console().Make()
}

// open creates a session and loads the page the command works on.
func (f *globalFlags) open(ctx context.Context) (*blocktree.Session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	logs, err := f.buildLogger()
	if err != nil {
		return nil, err
	}
	cfg.Logger = logs.Logger
	session, err := blocktree.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := session.FetchBlocksForPage(ctx, f.page); err != nil {
		return nil, err
	}
	return session, nil
}

func printTree(out io.Writer, session *blocktree.Session, pageID string) {
	session.Tree().Walk(pageID, func(b models.Block, depth int) bool {
		fmt.Fprintf(out, "%s- [%s] %s %s\n", strings.Repeat("  ", depth), b.ID, b.Type, models.TextOf(b.Content))
		return true
	})
}

func printResult(out io.Writer, res blocktree.Result) {
	fmt.Fprintf(out, "%s %s: %s\n", res.Action, res.BlockID, res.State)
	for from, to := range res.IDs {
		fmt.Fprintf(out, "  %s -> %s\n", from, to)
	}
}
