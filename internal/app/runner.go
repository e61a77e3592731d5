package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ggonzalez94/defi-sentinel/internal/agent"
	"github.com/ggonzalez94/defi-sentinel/internal/cache"
	"github.com/ggonzalez94/defi-sentinel/internal/config"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/execution"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
	"github.com/ggonzalez94/defi-sentinel/internal/out"
	"github.com/ggonzalez94/defi-sentinel/internal/policy"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
	"github.com/ggonzalez94/defi-sentinel/internal/version"
)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	// newCompleter overrides the model client. Tests use it to avoid the
	// network.
	newCompleter completerFactory
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return NewRunnerWithIO(strings.NewReader(""), stdout, stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string
	log         *slog.Logger

	registry *registry.Registry
	journal  *execution.Store
	cache    *cache.Store
	agent    *agent.Agent
	executor string
	model    string
	keepRaw  bool
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.close()
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Security-response orchestrator for DeFi wallets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(s.runner.stderr, settings.LogLevel)

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			cmd.Flags().Visit(func(f *pflag.Flag) {
				s.log.Debug("flag set", "command", path, "flag", f.Name, "value", f.Value.String())
			})
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if needsRegistry(path) && s.registry == nil {
				reg, err := loadRegistry(settings.RegistryDir)
				if err != nil {
					return err
				}
				s.registry = reg
			}
			if needsJournal(path) && s.journal == nil {
				store, err := execution.OpenStore(settings.JournalPath, settings.JournalLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open action journal", err)
				}
				s.journal = store
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	flags := cmd.PersistentFlags()
	flags.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	flags.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	flags.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	flags.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	flags.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	flags.StringVar(&s.flags.EnableActions, "enable-actions", "", "Allowlist remediation kinds (comma-separated)")
	flags.StringVar(&s.flags.Timeout, "timeout", "", "Per-alert timeout for model and executor calls")
	flags.IntVar(&s.flags.Retries, "retries", -1, "Retries per executor request")
	flags.StringVar(&s.flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the model response cache")
	flags.StringVar(&s.flags.Executor, "executor", "", "Executor: simulator or remote")
	flags.StringVar(&s.flags.Wallet, "wallet", "", "Operator wallet address")
	flags.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newAlertCommand())
	cmd.AddCommand(s.newWatchCommand())
	cmd.AddCommand(s.newRegistryCommand())
	cmd.AddCommand(s.newActionsCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func loadRegistry(dir string) (*registry.Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return registry.Default()
	}
	return registry.Load(dir)
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Executor:  s.executor,
			Model:     s.model,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newRequestID() string {
	return uuid.NewString()
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func needsRegistry(commandPath string) bool {
	switch path := normalizeCommandPath(commandPath); {
	case path == "alert", path == "watch":
		return true
	case strings.HasPrefix(path, "registry"):
		return true
	default:
		return false
	}
}

func needsJournal(commandPath string) bool {
	switch path := normalizeCommandPath(commandPath); {
	case path == "alert", path == "watch":
		return true
	case strings.HasPrefix(path, "actions"):
		return true
	default:
		return false
	}
}
