package cli

import (
	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	backendFlagName     = "backend"
	bucketFlagName      = "bucket"
	projectFlagName     = "project"
	credentialsFlagName = "credentials"
	dsnFlagName         = "dsn"
	counterKeyFlagName  = "counter-key"
	inputFlagName       = "input"
	columnFlagName      = "column"
	minAvgScoreFlagName = "min-avg-score"
	outDirFlagName      = "out-dir"
	workersFlagName     = "workers"
	historyDBFlagName   = "history-db"
	limitFlagName       = "limit"
	githubRepoFlagName  = "github-repo"
	githubSHAFlagName   = "github-sha"
	githubAPIFlagName   = "github-api-url"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    backendFlagName,
			Usage:   "Artifact store backend [gcs, sqlite, postgres, memory]",
			Sources: cli.EnvVars("PWGATE_BACKEND"),
		},
		&cli.StringFlag{
			Name:    bucketFlagName,
			Usage:   "GCS bucket holding the registry and reports",
			Sources: cli.EnvVars("GCS_BUCKET_NAME"),
		},
		&cli.StringFlag{
			Name:    projectFlagName,
			Usage:   "GCP project billed for GCS requests (optional)",
			Sources: cli.EnvVars("GCP_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:    credentialsFlagName,
			Usage:   "Path to a GCP service account key file (optional)",
			Sources: cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		&cli.StringFlag{
			Name:    dsnFlagName,
			Usage:   "SQLite file or PostgreSQL connection string for the sql backends",
			Sources: cli.EnvVars("PWGATE_DSN"),
		},
		&cli.StringFlag{
			Name:    counterKeyFlagName,
			Usage:   "Object name of the version counter",
			Sources: cli.EnvVars("VERSION_FILE_NAME"),
		},
	}
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    inputFlagName,
			Aliases: []string{"i"},
			Usage:   "CSV file with the passwords to score",
			Sources: cli.EnvVars("PASSWORDS_CSV"),
		},
		&cli.StringFlag{
			Name:    columnFlagName,
			Usage:   "CSV column holding the passwords",
			Sources: cli.EnvVars("PASSWORDS_COL"),
		},
		&cli.IntFlag{
			Name:  workersFlagName,
			Usage: "Number of scoring goroutines (0 uses all CPUs)",
		},
	}
}

func historyDBFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  historyDBFlagName,
		Usage: "Path to the local run history database (optional, defaults to $HOME/.pwgate/history.db)",
	}
}

func runFlags() []cli.Flag {
	flags := append(storeFlags(), inputFlags()...)
	return append(flags,
		&cli.FloatFlag{
			Name:    minAvgScoreFlagName,
			Usage:   "Fail the run when the average score is below this value",
			Sources: cli.EnvVars("MIN_AVG_SCORE"),
		},
		&cli.StringFlag{
			Name:  outDirFlagName,
			Usage: "Directory for the local report copies",
		},
		historyDBFlag(),
		&cli.StringFlag{
			Name:    githubRepoFlagName,
			Usage:   "Repository (owner/name) to post the commit status to (optional)",
			Sources: cli.EnvVars("GITHUB_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:    githubSHAFlagName,
			Usage:   "Commit to post the status to (optional)",
			Sources: cli.EnvVars("GITHUB_SHA"),
		},
		&cli.StringFlag{
			Name:    githubAPIFlagName,
			Usage:   "GitHub API URL (optional, defaults to the public API)",
			Sources: cli.EnvVars("GITHUB_API_URL"),
		},
	)
}

func historyFlags() []cli.Flag {
	return []cli.Flag{
		historyDBFlag(),
		&cli.IntFlag{
			Name:  limitFlagName,
			Usage: "Limits number of runs returned",
			Value: data.ListLimitDefault,
		},
	}
}

// applyFlags overrides config values with the flags set on the command line
// or through their environment variables. Flags the command does not
// define are ignored.
func applyFlags(cmd *cli.Command, c *config.Config) {
	setString := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}

	setString(backendFlagName, &c.Backend)
	setString(bucketFlagName, &c.Bucket)
	setString(projectFlagName, &c.Project)
	setString(credentialsFlagName, &c.CredentialsFile)
	setString(dsnFlagName, &c.DSN)
	setString(counterKeyFlagName, &c.CounterKey)
	setString(inputFlagName, &c.InputPath)
	setString(columnFlagName, &c.InputColumn)
	setString(outDirFlagName, &c.OutDir)
	setString(historyDBFlagName, &c.HistoryDB)
	setString(githubRepoFlagName, &c.GitHub.Repo)
	setString(githubSHAFlagName, &c.GitHub.SHA)

	if cmd.IsSet(minAvgScoreFlagName) {
		c.MinAvgScore = cmd.Float(minAvgScoreFlagName)
	}
	if cmd.IsSet(workersFlagName) {
		c.Workers = cmd.Int(workersFlagName)
	}
}
