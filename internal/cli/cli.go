package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vk/assetgraph/internal/app"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/server"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "ASSETGRAPH"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// secrets maps config keys to the unprefixed variables the backend has
// always read them from.
var secrets = map[string]string{
	"fmp-api-key":    "FMP_API_KEY",
	"openai-api-key": "OPENAI_API_KEY",
}

// Execute parses args and runs the selected command. Usage problems are
// reported as *ExitError with code 2.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)

	_, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return usageError("%s", err.Error())
	}
	return err
}

// NewRootCommand builds the command tree. Every invocation gets its own
// viper instance, so commands can be built repeatedly in tests.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	root, _ := newRoot(outW, errW)
	return root
}

func newRoot(outW, errW io.Writer) (*cobra.Command, *viper.Viper) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "assetgraph",
		Short: "AssetGraph - a workflow graph engine for financial analysis pipelines.",
		Long: `AssetGraph runs directed acyclic graphs of typed nodes. Independent
nodes run concurrently, each node sees only what its dependencies produced,
and a failing node never aborts the rest of the graph.

Graphs are JSON, YAML or HCL files of the form:
  {"nodes": [{"id", "type", "params"}], "edges": [{"from", "to"}]}`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadSettings(cmd, v)
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%s", err.Error())
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file.")
	pf.String("env-file", ".env", "Path to a dotenv file loaded before reading the environment.")
	pf.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.Int("workers", 4, "Number of concurrent workers for the engine.")
	pf.Duration("node-timeout", 0, "Time limit for a single node invocation. 0 disables it.")
	pf.String("result-mode", "state", "Result payload. Options: 'state' or 'nodes'.")
	pf.String("state-mode", app.StateModeShared, "State schema. Options: 'shared' (strict) or 'isolated' (any field).")
	pf.String("fmp-base-url", "", "Override the Financial Modeling Prep API root.")
	pf.String("openai-model", "", "Chat model used by LLM report nodes.")
	pf.String("openai-base-url", "", "Override the OpenAI-compatible API root.")

	root.AddCommand(
		newRunCommand(v, outW, errW),
		newValidateCommand(v, outW, errW),
		newServeCommand(v, outW, errW),
		newNodesCommand(v, outW, errW),
	)
	return root, v
}

// loadSettings loads the dotenv file and the optional config file, then
// binds every flag of cmd so that flags override the environment, which
// overrides the config file.
func loadSettings(cmd *cobra.Command, v *viper.Viper) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return usageError("failed to load env file %s: %v", envFile, err)
		}
	}

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return usageError("failed to read config file: %v", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for key, env := range secrets {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return err
		}
	}
	slog.Debug("Settings loaded.", "command", cmd.Name())
	return nil
}

// buildConfig turns the bound settings and positional args into a validated
// app configuration.
func buildConfig(v *viper.Viper, args []string) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		SpecPaths:       args,
		Example:         v.GetString("example"),
		LogFormat:       v.GetString("log-format"),
		LogLevel:        v.GetString("log-level"),
		Workers:         v.GetInt("workers"),
		NodeTimeout:     v.GetDuration("node-timeout"),
		ResultMode:      engine.ResultMode(v.GetString("result-mode")),
		StateMode:       v.GetString("state-mode"),
		Addr:            v.GetString("addr"),
		HealthcheckPort: v.GetInt("healthcheck-port"),
		FMPAPIKey:       v.GetString("fmp-api-key"),
		FMPBaseURL:      v.GetString("fmp-base-url"),
		OpenAIAPIKey:    v.GetString("openai-api-key"),
		OpenAIModel:     v.GetString("openai-model"),
		OpenAIBaseURL:   v.GetString("openai-base-url"),
	})
	if err != nil {
		return nil, usageError("%s", err.Error())
	}
	return cfg, nil
}

func newRunCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [GRAPH_PATH...]",
		Short: "Execute a graph once and print the result.",
		Long: `Execute a graph once and print the result as JSON.

GRAPH_PATH is a .json, .yaml, .yml or .hcl file or a directory of them; all
files are merged into one graph. Use --example to run an embedded graph.
The command exits with status 1 when any node failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, args, outW, errW, true, func(a *app.App) error {
				return a.Run(cmd.Context())
			})
		},
	}
	cmd.Flags().String("example", "", fmt.Sprintf("Run an embedded example graph. Options: %s.", strings.Join(app.Examples(), ", ")))
	cmd.Flags().Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	return cmd
}

func newValidateCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [GRAPH_PATH...]",
		Short: "Check a graph and print its execution order without running it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, args, outW, errW, true, func(a *app.App) error {
				return a.Validate(cmd.Context())
			})
		},
	}
	cmd.Flags().String("example", "", "Validate an embedded example graph.")
	return cmd
}

func newServeCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the WebSocket status stream.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, nil, outW, errW, false, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
	cmd.Flags().String("addr", server.DefaultAddr, "Listen address.")
	return cmd
}

func newNodesCommand(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the registered node types.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, nil, outW, errW, false, func(a *app.App) error {
				a.Nodes()
				return nil
			})
		},
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError("%s takes no arguments, got %q", cmd.Name(), args)
	}
	return nil
}

// withApp builds the app for one command, runs fn and releases the app.
func withApp(v *viper.Viper, args []string, outW, errW io.Writer, needGraph bool, fn func(*app.App) error) error {
	cfg, err := buildConfig(v, args)
	if err != nil {
		return err
	}
	if needGraph && !cfg.HasGraph() {
		return usageError("no graph specification given: pass GRAPH_PATH or --example")
	}

	a := app.NewApp(outW, errW, cfg)
	defer a.Close()
	return fn(a)
}
