package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chat-svc",
	Short: "Room group-chat session manager",
	Long: "chat-svc links live rooms to messaging groups, keeps per-user network " +
		"sessions and serves chat over HTTP and a gRPC message stream.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
