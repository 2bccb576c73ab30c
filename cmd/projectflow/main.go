// Command projectflow is a terminal client for the optimistic task engine:
// it fetches views through the cache, applies mutations optimistically, and
// prints the resulting shapes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var rootCtx = context.Background()

var (
	flagConfig string
	flagUser   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "projectflow",
		Short:   "Projectflow - optimistic project and task client",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "demo-user", "acting user id")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(taskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flagConfig, flagUser)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, cmd, args)
	}
}
