package app

import (
	"context"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
)

func (s *runtimeState) newAlertCommand() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "alert [text...]",
		Short: "Analyze one security alert and respond to it",
		Example: `  sentinel alert "Aave V3 pool on chain 1 is being drained, withdraw token: USDC amount: all"
  cat alert.txt | sentinel alert --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if fromStdin {
				buf, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "read alert from stdin", err)
				}
				text = strings.TrimSpace(string(buf))
			}
			if text == "" {
				return clierr.New(clierr.CodeUsage, "alert text is required (pass it as arguments or use --stdin)")
			}
			a, err := s.ensureAgent(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()
			outcome := a.Process(ctx, text)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), outcome)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the alert text from stdin")
	cmd.Flags().BoolVar(&s.keepRaw, "raw", false, "Include the model response in the outcome")
	return cmd
}

func (s *runtimeState) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process alerts from stdin, one per line, until EOF or interrupt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := s.ensureAgent(ctx)
			if err != nil {
				return err
			}
			path := trimRootPath(cmd.CommandPath())
			err = a.Watch(ctx, cmd.InOrStdin(), func(outcome model.AlertOutcome) error {
				return s.emitSuccess(path, outcome)
			})
			for _, entry := range a.Monitors().List() {
				s.log.Info("active monitor", "key", entry.Key, "duration", entry.Duration, "threshold", entry.Threshold, "subscribers", len(entry.Subscribers))
			}
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "watch alerts", err)
			}
			return nil
		},
	}
}
