package cmd

import (
	"fmt"

	"github.com/everkeep/everkeep/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	config   *viper.Viper
	isDevEnv bool
)

var rootCmd = &cobra.Command{
	Use: "everkeep",
	Short: `everkeep keeps a dead-man's-switch for you.

The server stores your heartbeat settings & guardians, and the prioritized
escalation chain that decides who gets contacted if you ever go quiet.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
	rootCmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
}
