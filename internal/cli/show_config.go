// internal/cli/show_config.go
package cardia

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/cardia/internal/appconfig"
)

// showConfigCmd implements 'show config', which prints the merged settings
// after the config file, environment and flags have been applied.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the config file is loaded properly and overridden by flags accordingly.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), *GetConfig(), verbose)
	},
}

func init() {
	showConfigCmd.Flags().BoolP("verbose", "v", false, "dump the full configuration struct")
	showCmd.AddCommand(showConfigCmd)
}
