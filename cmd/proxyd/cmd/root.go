package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is the `proxyd` command.
var rootCmd = &cobra.Command{
	Use:   "proxyd",
	Short: "Routing and distribution core for a sharded cache proxy",
	Long: `proxyd owns the continuum, server health/ejection, and hot-reload
state machine in front of a sharded memcached/Redis backend fleet. It
does not speak the wire protocols itself; that lives in the surrounding
event loop this binary wires up.`,
}

// Execute activates the `proxyd` command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(64)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "pool config file (YAML)")
	rootCmd.PersistentFlags().StringP("pidfile", "", "/var/run/proxyd.pid", "path to write the running process's pid")
	viper.BindPFlag("pidfile", rootCmd.PersistentFlags().Lookup("pidfile"))
}

func initConfig() {
	viper.SetEnvPrefix("proxyd")
	viper.AutomaticEnv()
}
