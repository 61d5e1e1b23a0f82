package configcmd

import (
	"os"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var flagShowSecrets bool

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the merged configuration to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		if !flagShowSecrets {
			cfg = cfg.Redacted()
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	},
}

func init() {
	printCmd.Flags().BoolVar(&flagShowSecrets, "show-secrets", false, "Print passwords and the webhook URL unmasked")
}
