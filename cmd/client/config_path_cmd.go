package main

import (
	"fmt"

	"github.com/syftbox-sh/syftbox/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigPathCmd())
}

func newConfigPathCmd() *cobra.Command {
	var showExists bool

	cmd := &cobra.Command{
		Use:   "config-path",
		Short: "Print the resolved config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			if !showExists {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}

			status := "missing"
			if utils.FileExists(path) {
				status = "found"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, status)
			return err
		},
	}

	cmd.Flags().BoolVar(&showExists, "exists", false, "also report whether the file exists on disk")
	return cmd
}

