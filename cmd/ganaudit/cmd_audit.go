package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ganaudit/internal/config"
	"ganaudit/internal/orchestrator"
	"ganaudit/internal/types"
)

func newAuditCmd() *cobra.Command {
	var (
		sessionID     string
		thoughtNumber int
		priority      string
	)

	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Run a one-shot audit of an artifact file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagStateDir)
			if err != nil {
				return err
			}
			artifact, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			review, err := eng.orch.Audit(context.Background(), types.Thought{
				SessionID:     sessionID,
				ThoughtNumber: thoughtNumber,
				Artifact:      string(artifact),
			}, sessionID, orchestrator.Options{Priority: types.Priority(priority)})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(review, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (continues an existing loop)")
	cmd.Flags().IntVar(&thoughtNumber, "thought", 1, "thought number within the session")
	cmd.Flags().StringVar(&priority, "priority", "normal", "queue priority: high|normal|low")
	return cmd
}
