package main

import (
	"encoding/json"
	"fmt"
	"os"

	"roomchat/internal/wire"

	"github.com/spf13/cobra"
)

var roomID string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect or retire the group linked to a room",
}

var groupInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the group bound to a room",
	Long:  "Show the group bound to a room. Counts are only known to the serving process, whose network is in-process.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := wire.InitializeApplication()
		if err != nil {
			return err
		}
		defer cleanup()

		info, err := app.Service.GetGroupInfo(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		return printJSON(info)
	},
}

var groupRetireCmd = &cobra.Command{
	Use:   "retire",
	Short: "Unlink a room from its group; the group's history stays on the network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := wire.InitializeApplication()
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := app.Service.RetireGroup(cmd.Context(), roomID)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	for _, c := range []*cobra.Command{groupInfoCmd, groupRetireCmd} {
		c.Flags().StringVar(&roomID, "room", "", "room id")
		_ = c.MarkFlagRequired("room")
		groupCmd.AddCommand(c)
	}
	rootCmd.AddCommand(groupCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
