package configcmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/paths"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	flagOverwrite      bool
	flagDryRun         bool
	flagPromptPassword bool
	flagServerPort     int
	flagPGHost         string
	flagPGPort         int
	flagPGDatabase     string
	flagPGUser         string
	flagPGSSLMode      string
	flagCrousBaseURL   string
	flagWebhookURL     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the global config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := paths.EnsureHome(); err != nil {
			return err
		}
		path := cfgpkg.Path()
		if !flagOverwrite && !flagDryRun {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s (use --overwrite to replace)", path)
			}
		}

		// start from existing values so secrets survive
		cfg, _ := cfgpkg.LoadFile(path)

		if cmd.Flags().Changed("server-port") {
			cfg.Server.Port = flagServerPort
		}
		if cmd.Flags().Changed("pg-host") {
			cfg.Postgres.Host = flagPGHost
		}
		if cmd.Flags().Changed("pg-port") {
			cfg.Postgres.Port = flagPGPort
		}
		if cmd.Flags().Changed("pg-database") {
			cfg.Postgres.Database = flagPGDatabase
		}
		if cmd.Flags().Changed("pg-user") {
			cfg.Postgres.User = flagPGUser
		}
		if cmd.Flags().Changed("pg-sslmode") {
			cfg.Postgres.SSLMode = flagPGSSLMode
		}
		if cmd.Flags().Changed("crous-base-url") {
			cfg.Crous.BaseURL = strings.TrimRight(flagCrousBaseURL, "/")
		}
		if cmd.Flags().Changed("webhook-url") {
			cfg.Notify.WebhookURL = flagWebhookURL
		}
		if flagPromptPassword {
			pw, err := promptSecret(fmt.Sprintf("Postgres password for %q: ", cfg.Postgres.User))
			if err != nil {
				return err
			}
			cfg.Postgres.Password = pw
		}

		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if flagDryRun {
			os.Stdout.Write(b)
			fmt.Fprintf(os.Stderr, "dry-run: not writing %s\n", path)
			return nil
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote config to %s\n", path)
		return nil
	},
}

func promptSecret(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	fmt.Fprintln(os.Stderr, "warning: reading password from stdin; input will not be masked")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	initCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "Overwrite existing config.yaml if present")
	initCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print merged config to stdout without writing")
	initCmd.Flags().BoolVar(&flagPromptPassword, "prompt-password", false, "Prompt for the Postgres password without echo")

	initCmd.Flags().IntVar(&flagServerPort, "server-port", cfgpkg.DefaultServerPort, "Status server HTTP port")
	initCmd.Flags().StringVar(&flagPGHost, "pg-host", "127.0.0.1", "Postgres host")
	initCmd.Flags().IntVar(&flagPGPort, "pg-port", cfgpkg.DefaultPostgresPort, "Postgres port")
	initCmd.Flags().StringVar(&flagPGDatabase, "pg-database", "crous", "Postgres database name")
	initCmd.Flags().StringVar(&flagPGUser, "pg-user", "crous", "Postgres user")
	initCmd.Flags().StringVar(&flagPGSSLMode, "pg-sslmode", "disable", "Postgres SSL mode")
	initCmd.Flags().StringVar(&flagCrousBaseURL, "crous-base-url", "", "Upstream catalog API base URL")
	initCmd.Flags().StringVar(&flagWebhookURL, "webhook-url", "", "Webhook receiving run summaries")
}
