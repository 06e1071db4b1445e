package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Signal a running proxyd to reload its pool config",
	RunE:  runReload,
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}

func runReload(c *cobra.Command, args []string) error {
	path := viper.GetString("pidfile")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reload: reading pid file %s: %w", path, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("reload: pid file %s has malformed contents: %w", path, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return proc.Signal(syscall.SIGHUP)
}
