package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "pwgate"
	appConfigKey   = "app-config"
	configFileName = "config.yaml"

	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName    = "debug"
	configFlagName   = "config"
	formatFlagName   = "format"
	logLevelFlagName = "log-level"
	logFileFlagName  = "log-file"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Config     *config.Config
	ConfigPath string
	HomeDir    string
	Format     string
	Debug      bool
	closer     io.Closer
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

// flags are built per app because urfave/cli keeps parse state on them.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  debugFlagName,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&cli.StringFlag{
			Name:    configFlagName,
			Usage:   "Path to the config file (optional, defaults to $HOME/.pwgate/config.yaml)",
			Sources: cli.EnvVars("PWGATE_CONFIG"),
		},
		&cli.StringFlag{
			Name:  formatFlagName,
			Usage: "Output format [json, yaml]",
			Value: formatJSON,
		},
		&cli.StringFlag{
			Name:    logLevelFlagName,
			Usage:   "Log level [debug, info, warn, error]",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    logFileFlagName,
			Usage:   "Also write JSON logs to this file (optional)",
			Sources: cli.EnvVars("LOG_FILE"),
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Score password batches and promote the best run in a versioned registry",
		Metadata:              map[string]any{},
		Flags:                 globalFlags(),
		Commands: []*cli.Command{
			newRunCmd(),
			newScoreCmd(),
			newMetricsCmd(),
			newManifestCmd(),
			newHistoryCmd(),
			newAuthCmd(),
		},
		Before: before,
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.closer != nil {
				return cfg.closer.Close()
			}
			return nil
		},
	}
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	home, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		home = "."
	}

	cfgPath := cmd.String(configFlagName)
	if cfgPath == "" {
		cfgPath = filepath.Join(home, configFileName)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return ctx, fmt.Errorf("loading config: %w", err)
	}

	if cmd.IsSet(logLevelFlagName) {
		cfg.LogLevel = cmd.String(logLevelFlagName)
	}
	if cmd.Bool(debugFlagName) {
		cfg.LogLevel = "debug"
	}
	if cmd.IsSet(logFileFlagName) {
		cfg.LogFile = cmd.String(logFileFlagName)
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(home, "history.db")
	}

	logger, closer, err := logging.NewLogger(errWriter(cmd), cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return ctx, fmt.Errorf("initializing logging: %w", err)
	}
	slog.SetDefault(logger)

	format := formatJSON
	if f := cmd.String(formatFlagName); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	cmd.Metadata[appConfigKey] = &appConfig{
		Config:     cfg,
		ConfigPath: cfgPath,
		HomeDir:    home,
		Format:     format,
		Debug:      cmd.Bool(debugFlagName),
		closer:     closer,
	}
	slog.Debug("config loaded", "path", cfgPath, "backend", cfg.Backend)
	return ctx, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func encode(cmd *cli.Command, v any) error {
	w := writer(cmd)
	if getConfig(cmd).Format == formatYAML {
		return yaml.NewEncoder(w).Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
