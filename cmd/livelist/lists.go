package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show local lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, err := ctx.openLists(cmd.Context())
			if err != nil {
				return err
			}
			defer lists.Close()

			fmt.Fprintln(cmd.OutOrStdout(), renderLists(lists.State()))
			return nil
		},
	}
}
