// Command fiberd drives a fiber scheduler from the command line: run
// a scripted workload against it, or watch a live one with top.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string
var cmdOut = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "fiberd",
	Short: "fiberd runs and inspects fiber schedulers",
	Long:  `fiberd is a small runtime around a fiber/scheduler core: run submits a scripted workload, top watches dispatch stats live.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a fiberd.yaml config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(topCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
