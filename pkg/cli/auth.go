package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pwgate"
	fileMode       = 0600

	providerFlagName = "provider"
	tokenFlagName    = "token"
)

// tokenKind describes where a credential is looked up.
type tokenKind struct {
	Name     string
	EnvVar   string
	FileName string
}

var (
	githubToken = tokenKind{Name: "github", EnvVar: "GITHUB_TOKEN", FileName: "github_token"}
	gcsToken    = tokenKind{Name: "gcs", EnvVar: "GCS_ACCESS_TOKEN", FileName: "gcs_token"}

	tokenKinds = map[string]tokenKind{
		githubToken.Name: githubToken,
		gcsToken.Name:    gcsToken,
	}

	errTokenNotFound = errors.New("token not found")
)

func newAuthCmd() *cli.Command {
	return &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Save an access token (github or gcs) to the OS keychain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     providerFlagName,
				Usage:    "Token provider [github, gcs]",
				Required: true,
			},
			&cli.StringFlag{
				Name:  tokenFlagName,
				Usage: "Token value (optional, read from stdin when not set)",
			},
		},
		Action: cmdAuth,
	}
}

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	kind, ok := tokenKinds[cmd.String(providerFlagName)]
	if !ok {
		return fmt.Errorf("unsupported provider: %s", cmd.String(providerFlagName))
	}

	token := cmd.String(tokenFlagName)
	if token == "" {
		fmt.Fprintf(writer(cmd), "Paste the %s token and hit enter:\n>", kind.Name)
		t, err := readToken(cmd.Root().Reader)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = t
	}

	if err := saveToken(kind, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintf(writer(cmd), "%s token saved\n", kind.Name)
	return nil
}

func readToken(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func tokenDir() string {
	dir, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	return dir
}

func saveToken(kind tokenKind, token string) error {
	if token == "" {
		return errors.New("empty token")
	}

	if err := keyring.Set(keyringService, kind.Name, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveTokenFile(kind, token)
	}

	// Clean up legacy file if it exists
	os.Remove(filepath.Join(tokenDir(), kind.FileName))

	return nil
}

// getToken looks the token up in the environment, then the keychain,
// then the token file.
func getToken(kind tokenKind) (string, error) {
	if v := strings.TrimSpace(os.Getenv(kind.EnvVar)); v != "" {
		return v, nil
	}

	token, err := keyring.Get(keyringService, kind.Name)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = getTokenFile(kind)
	if err != nil {
		return "", err
	}

	// Migrate to keychain
	if migrateErr := keyring.Set(keyringService, kind.Name, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain", "provider", kind.Name)
		os.Remove(filepath.Join(tokenDir(), kind.FileName))
	}

	return token, nil
}

func saveTokenFile(kind tokenKind, token string) error {
	tokenPath := filepath.Join(tokenDir(), kind.FileName)
	return os.WriteFile(tokenPath, []byte(token), fileMode)
}

func getTokenFile(kind tokenKind) (string, error) {
	tokenPath := filepath.Join(tokenDir(), kind.FileName)
	b, err := os.ReadFile(tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", errTokenNotFound, kind.Name)
		}
		return "", fmt.Errorf("reading token file %s: %w", tokenPath, err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("%w: %s", errTokenNotFound, kind.Name)
	}
	return token, nil
}
