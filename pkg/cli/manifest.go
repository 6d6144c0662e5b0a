package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/pwgate/pkg/pipeline"
	"github.com/urfave/cli/v3"
)

func newManifestCmd() *cli.Command {
	return &cli.Command{
		Name:   "manifest",
		Usage:  "Print the promoted manifest and the current version counter",
		Flags:  storeFlags(),
		Action: cmdManifest,
	}
}

func cmdManifest(ctx context.Context, cmd *cli.Command) error {
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

	p, err := pipeline.New(cfg, s)
	if err != nil {
		return err
	}

	st, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading registry: %w", err)
	}

	return encode(cmd, st)
}
