package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskledger/core/cmd/api/commands"
)

// @title TaskLedger API
// @version 1.0
// @description Multi-user task list with cookie-session authentication

// @host localhost:3000
// @BasePath /

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskledger",
		Short: "TaskLedger server",
		Long:  `TaskLedger is a multi-user task list service with session-based authentication and pluggable file or postgres storage.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
