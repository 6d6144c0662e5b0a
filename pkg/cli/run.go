package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/notify"
	"github.com/mchmarny/pwgate/pkg/pipeline"
	"github.com/mchmarny/pwgate/pkg/store"
	"github.com/urfave/cli/v3"
)

func newRunCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Score the password batch, upload reports and promote the run when it beats the best one",
		Flags:  runFlags(),
		Action: cmdRun,
	}
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var token string
	if c.Backend == config.BackendGCS && c.CredentialsFile == "" {
		t, err := getToken(gcsToken)
		if err != nil {
			slog.Debug("no stored gcs token, using default credentials", "error", err)
		}
		token = t
	}
	return pipeline.OpenStore(ctx, c, token)
}

func newNotifier(ctx context.Context, cmd *cli.Command, c *config.Config) pipeline.Notifier {
	if !c.GitHub.Enabled() {
		return nil
	}

	token, err := getToken(githubToken)
	if err != nil {
		slog.Warn("commit status disabled, no github token", "error", err)
		return nil
	}

	n, err := notify.NewGitHub(ctx, token, c.GitHub.Repo, c.GitHub.Context, cmd.String(githubAPIFlagName))
	if err != nil {
		slog.Warn("commit status disabled", "error", err)
		return nil
	}
	return n
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd).Config
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrConfiguration, err)
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if n := newNotifier(ctx, cmd, cfg); n != nil {
		opts = append(opts, pipeline.WithNotifier(n))
	}

	p, err := pipeline.New(cfg, s, opts...)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrThreshold) {
			slog.Error("run failed the quality gate, reports were uploaded but nothing was promoted")
		}
		return err
	}

	w := writer(cmd)
	fmt.Fprintf(w, "PROMOTED=%s\n", strconv.FormatBool(res.Promoted))
	if res.CounterUpdated {
		fmt.Fprintf(w, "Version updated to %d\n", res.Version)
	} else {
		fmt.Fprintln(w, "Failed to update version")
	}
	fmt.Fprintf(w, "MODEL_VERSION_OUTPUT: %d\n", res.Version)
	fmt.Fprintf(w, "METRIC_OUTPUT: %s\n", strconv.FormatFloat(res.Metric, 'f', -1, 64))

	if cmd.IsSet(formatFlagName) {
		return encode(cmd, res)
	}
	return nil
}
