package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/input"
	"github.com/mchmarny/pwgate/pkg/metrics"
	"github.com/mchmarny/pwgate/pkg/score"
	"github.com/urfave/cli/v3"
)

func newScoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score passwords given as arguments and show how each score was computed",
		ArgsUsage: "[password...] (reads one per line from stdin when none given)",
		Action:    cmdScore,
	}
}

func newMetricsCmd() *cli.Command {
	return &cli.Command{
		Name:   "metrics",
		Usage:  "Score the password file and print the batch metrics without touching the registry",
		Flags:  inputFlags(),
		Action: cmdMetrics,
	}
}

type scoredPassword struct {
	Password  string          `json:"password" yaml:"password"`
	Breakdown *score.Breakdown `json:"breakdown" yaml:"breakdown"`
}

func cmdScore(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		lines, err := readLines(cmd.Root().Reader)
		if err != nil {
			return fmt.Errorf("reading passwords: %w", err)
		}
		args = lines
	}
	if len(args) == 0 {
		return errors.New("at least one password required")
	}

	list := make([]*scoredPassword, 0, len(args))
	for _, pw := range args {
		list = append(list, &scoredPassword{Password: pw, Breakdown: score.Explain(pw)})
	}

	return encode(cmd, list)
}

func cmdMetrics(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd).Config
	applyFlags(cmd, cfg)

	passwords, err := loadPasswords(cfg)
	if err != nil {
		return err
	}

	scores, err := score.All(ctx, passwords, cfg.Workers)
	if err != nil {
		return fmt.Errorf("scoring passwords: %w", err)
	}

	return encode(cmd, metrics.Compute(scores))
}

// readLines returns the lines of r without the line endings. Empty lines
// are kept since the empty password is a valid input.
func readLines(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, nil
	}
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

func loadPasswords(cfg *config.Config) ([]string, error) {
	passwords, err := input.LoadPasswords(cfg.InputPath, cfg.InputColumn)
	if err != nil {
		return nil, fmt.Errorf("loading passwords: %w", err)
	}
	return passwords, nil
}
