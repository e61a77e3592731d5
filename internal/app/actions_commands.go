package app

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
)

func (s *runtimeState) newActionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "actions", Short: "Inspect the persisted action journal"}

	var status, alertID string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled remediation actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				items []execution.Record
				err   error
			)
			if strings.TrimSpace(alertID) != "" {
				items, err = s.journal.ListByAlert(strings.TrimSpace(alertID))
			} else {
				switch execution.Status(strings.TrimSpace(status)) {
				case "", execution.StatusPlanned, execution.StatusCompleted, execution.StatusFailed:
				default:
					return clierr.New(clierr.CodeUsage, "--status must be planned, completed or failed")
				}
				items, err = s.journal.List(strings.TrimSpace(status), limit)
			}
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list actions", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (planned, completed, failed)")
	listCmd.Flags().StringVar(&alertID, "alert-id", "", "Only actions produced by this alert")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum actions to return")

	var actionID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show one journaled action",
		RunE: func(cmd *cobra.Command, args []string) error {
			actionID = strings.TrimSpace(actionID)
			if actionID == "" {
				return clierr.New(clierr.CodeUsage, "--action-id is required")
			}
			rec, err := s.journal.Get(actionID)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), rec)
		},
	}
	statusCmd.Flags().StringVar(&actionID, "action-id", "", "Action identifier")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Count journaled actions by kind and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tallies, err := s.journal.Summary()
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "summarize actions", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), tallies)
		},
	}

	var olderThan string
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journaled actions not updated within a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := time.ParseDuration(strings.TrimSpace(olderThan))
			if err != nil || window <= 0 {
				return clierr.New(clierr.CodeUsage, "--older-than must be a positive duration such as 720h")
			}
			removed, err := s.journal.Prune(s.runner.now().Add(-window))
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "prune actions", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{"removed": removed, "older_than": window.String()})
		},
	}
	pruneCmd.Flags().StringVar(&olderThan, "older-than", "720h", "Age threshold for deletion")

	root.AddCommand(listCmd)
	root.AddCommand(statusCmd)
	root.AddCommand(summaryCmd)
	root.AddCommand(pruneCmd)
	return root
}
