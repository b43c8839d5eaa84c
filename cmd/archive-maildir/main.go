package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edigiacomo/archive-maildir/internal/cli"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "archive-maildir",
	Short:   "Archive old emails from maildirs",
	Version: version,
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
