package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/pwgate/pkg/data"
	"github.com/urfave/cli/v3"
)

func newHistoryCmd() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "List the runs recorded on this machine, newest first",
		Flags:  historyFlags(),
		Action: cmdHistory,
	}
}

func cmdHistory(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd).Config
	applyFlags(cmd, cfg)

	if err := data.Init(cfg.HistoryDB); err != nil {
		return fmt.Errorf("initializing history: %w", err)
	}

	db, err := data.GetDB(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	list, err := data.ListRuns(db, cmd.Int(limitFlagName))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	return encode(cmd, list)
}
