package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	devconfig "github.com/everkeep/everkeep/dev/config"
	"github.com/everkeep/everkeep/server"
	"github.com/everkeep/everkeep/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start an everkeep server",
	Long:  `The everkeep server houses functionality for heartbeat monitoring settings & guardian escalation chains (aka a dead man's switch)`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config = viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)
	config.AutomaticEnv() // read in environment variables that match

	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

// devConfigFilePath writes the bundled dev config to ./dev/config/server.yml
// (if missing) & returns its path.
func devConfigFilePath() string {
	workDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configDir := filepath.Join(workDir, "dev", "config")
	if err := utils.CreateDirIfNotExist(filepath.Join(workDir, "dev")); err != nil {
		log.Panic(err)
	}
	if err := utils.CreateDirIfNotExist(configDir); err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "server.yml")
	if !utils.FileExist(configFilePath) {
		if err := ioutil.WriteFile(configFilePath, []byte(devconfig.SERVER_YML), 0600); err != nil {
			log.Panic(err)
		}
	}

	return configFilePath
}
