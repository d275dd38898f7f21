// Package cli implements the langstar command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codekiln/langstar/internal/app"
	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/logging"
	"github.com/codekiln/langstar/internal/metrics"
)

// CLI holds the streams and lazily loaded state shared by all commands of
// one invocation.
type CLI struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// interactive reports whether the user can answer a prompt.
	interactive func() bool

	configPath  string
	format      string
	logLevel    string
	metricsAddr string
	poll        deployment.PollOptions

	cfg           *config.Config
	app           *app.App
	metricsServer *http.Server
}

func New(in io.Reader, out, errOut io.Writer) *CLI {
	c := &CLI{in: in, out: out, errOut: errOut}
	c.interactive = func() bool {
		f, ok := c.in.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
	return c
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	c := New(in, out, errOut)
	root := c.NewRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	c.shutdown()
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitOK
}

// NewRootCmd creates the langstar command tree.
func (c *CLI) NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "langstar",
		Short: "Manage LangGraph deployments",
		Long: `langstar manages LangGraph deployments on the LangSmith control plane.

COMMON COMMANDS
  graph list                 List deployments
  graph create --name NAME   Create a deployment (add --wait to block until ready)
  graph wait REF             Re-attach to a revision that is still building
  graph url REF              Print the endpoint URL of a deployment
  graph delete REF           Delete a deployment

Credentials come from LANGSMITH_API_KEY and LANGSMITH_WORKSPACE_ID, a .env file
or the config file shown by 'langstar config'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.SuggestionsMinimumDistance = 2
	cmd.SetIn(c.in)
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/langstar/config.yaml)")
	cmd.PersistentFlags().StringVarP(&c.format, "format", "o", "", "Output format: table, json (default from config)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	cmd.AddCommand(
		c.newGraphCmd(),
		c.newConfigCmd(),
		c.newVersionCmd(),
	)
	return cmd
}

// config loads the configuration once and applies flag overrides.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	switch c.format {
	case "", config.FormatTable, config.FormatJSON:
	default:
		return nil, &usageError{err: fmt.Errorf("invalid --format %q: must be %q or %q", c.format, config.FormatTable, config.FormatJSON)}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.format != "" {
		cfg.OutputFormat = c.format
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: err}
	}
	c.cfg = cfg
	return cfg, nil
}

// application wires the control plane client on first use.
func (c *CLI) application() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg, "langstar", c.errOut)

	reg := prometheus.NewRegistry()
	c.app = app.New(cfg, logger, app.Options{
		Observer: metrics.NewPollMetrics(reg),
		Poll:     c.poll,
	})

	if c.metricsAddr != "" {
		c.startMetrics(reg, logger)
	}
	return c.app, nil
}

func (c *CLI) startMetrics(reg *prometheus.Registry, logger zerolog.Logger) {
	c.metricsServer = metrics.NewServer(c.metricsAddr, reg)
	go func() {
		logger.Info().Str("addr", c.metricsAddr).Msg("serving metrics")
		if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}

func (c *CLI) shutdown() {
	if c.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.metricsServer.Shutdown(ctx)
}

func (c *CLI) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the configuration file location and effective settings",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			path := cfg.Path
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p + " (not found)"
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration file: %s\n\n", path)
			fmt.Fprintf(w, "  Control plane:      %s\n", cfg.BaseURL())
			fmt.Fprintf(w, "  Workspace:          %s\n", orDash(cfg.WorkspaceID))
			fmt.Fprintf(w, "  Organization:       %s\n", orDash(cfg.OrganizationID))
			fmt.Fprintf(w, "  Secret source:      %s\n", orDash(string(cfg.Secrets.Source)))
			fmt.Fprintf(w, "  API key:            %s\n", configured(cfg.APIKey != "" || cfg.Secrets.Source != config.SecretSourceEnv))
			fmt.Fprintf(w, "  GitHub integration: %s\n", orDash(cfg.GitHubIntegrationID))
			fmt.Fprintf(w, "  Output format:      %s\n", cfg.OutputFormat)
			fmt.Fprintf(w, "  Poll interval:      %s\n", cfg.PollInterval)
			fmt.Fprintf(w, "  Poll timeout:       %s\n", cfg.PollTimeout)
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "langstar %s\n", app.Version)
		},
	}
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
