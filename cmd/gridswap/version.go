package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridswap/gridswap"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of gridswap",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridswap version %s\n", strings.TrimSpace(gridswap.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
