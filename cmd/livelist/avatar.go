package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"livelist/internal/live"
)

func newAvatarCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Show the name other people see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				name string
				err  error
			)
			if reset {
				name, err = live.ResetAvatar(ctx.identityPath())
			} else {
				name, err = ctx.avatar()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Generate a new name")
	return cmd
}
