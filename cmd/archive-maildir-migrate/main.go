// cmd/archive-maildir-migrate/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	internal_storage "github.com/edigiacomo/archive-maildir/internal/storage"
)

var rootCmd = &cobra.Command{Use: "archive-maildir-migrate"}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply journal database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		// Load .env if present
		if err := godotenv.Load(); err != nil {
			fmt.Printf("No .env file found or failed to load: %v. Using --journal flag.\n", err)
		}

		dsn, _ := cmd.Flags().GetString("journal")
		if dsn == "" {
			dsn = os.Getenv("ARCHIVE_MAILDIR_JOURNAL")
		}
		if dsn == "" {
			fmt.Println("Error: --journal flag or ARCHIVE_MAILDIR_JOURNAL required")
			os.Exit(1)
		}

		store, err := internal_storage.InitStore(dsn)
		if err != nil {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		store.Close()
		fmt.Println("Migrations applied successfully")
	},
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("journal", "", "Journal database DSN (optional if ARCHIVE_MAILDIR_JOURNAL is set)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
