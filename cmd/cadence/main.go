package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor bool
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Personal session scheduling with pattern-based suggestions",
	Long: `cadence stores your sessions and weekly availability and suggests
when to schedule the next ones, based on the habits in your history.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func defaultUser() string {
	if u := os.Getenv("CADENCE_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultUser(), "user to act as (env CADENCE_USER)")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, mcpCmd)
	rootCmd.AddCommand(sessionsCmd, availabilityCmd, timezoneCmd)
	rootCmd.AddCommand(suggestCmd, patternsCmd, conflictsCmd)
	rootCmd.AddCommand(importCmd, jobCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// userPath returns the API path for the current user.
func userPath(format string, args ...any) string {
	return "/users/" + pathEscape(userID) + fmt.Sprintf(format, args...)
}
