package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ganaudit/internal/archive"
	"ganaudit/internal/config"
	"ganaudit/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage persisted sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsGCCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var completed bool
	var reason string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions (active journals, or the completed archive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagStateDir)
			if err != nil {
				return err
			}

			if completed {
				arch, err := archive.Open(filepath.Join(cfg.StateDir, "archive.db"))
				if err != nil {
					return err
				}
				defer arch.Close()

				records, err := arch.List(reason, 100)
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Printf("%-40s %-10s loops=%-3d score=%-3d %s\n",
						r.ID, r.CompletionReason, r.TotalLoops, r.FinalScore, r.CompletedAt.Format("2006-01-02 15:04"))
				}
				return nil
			}

			sessions, err := store.New(cfg.StateDir, cfg.Store.WriteRetries)
			if err != nil {
				return err
			}
			ids, err := sessions.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				state, err := sessions.Get(id)
				if err != nil {
					fmt.Printf("%-40s (unreadable: %v)\n", id, err)
					continue
				}
				status := "active"
				if state.IsComplete {
					status = "complete:" + state.CompletionReason
				}
				fmt.Printf("%-40s %-20s loops=%-3d updated=%s\n",
					id, status, state.CurrentLoop, state.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "list the completed-session archive instead of active journals")
	cmd.Flags().StringVar(&reason, "reason", "", "filter archived sessions by completion reason")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session journal as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagStateDir)
			if err != nil {
				return err
			}
			sessions, err := store.New(cfg.StateDir, cfg.Store.WriteRetries)
			if err != nil {
				return err
			}
			state, err := sessions.Get(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newSessionsGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove session journals older than the configured max age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagStateDir)
			if err != nil {
				return err
			}
			sessions, err := store.New(cfg.StateDir, cfg.Store.WriteRetries)
			if err != nil {
				return err
			}
			removed := sessions.GCOlderThan(cfg.Store.MaxSessionAge)
			fmt.Printf("removed %d session journal(s)\n", removed)
			return nil
		},
	}
}
