// ganaudit is the iterative adversarial code-audit engine: callers submit
// successive artifact revisions and receive structured reviews with scores,
// verdicts, evidence, and loop-control guidance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ganaudit/internal/logging"
)

var (
	flagStateDir string
	flagDebug    bool

	logger *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "ganaudit",
		Short: "Iterative adversarial code-audit engine",
		Long: `ganaudit drives a candidate artifact to ship quality with bounded work:
each submitted revision is judged against a weighted rubric, scored, and
annotated with evidence, diffs, and a completion decision.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "state directory (default .mcp-gan-state)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newSessionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap sets up process logging and the category log files.
func bootstrap() error {
	zcfg := zap.NewProductionConfig()
	if flagDebug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		os.Setenv("GANAUDIT_DEBUG", "1")
	}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	dir := flagStateDir
	if dir == "" {
		dir = ".mcp-gan-state"
	}
	if err := logging.Initialize(dir); err != nil {
		logger.Warn("category logging unavailable", zap.Error(err))
	}
	return nil
}
