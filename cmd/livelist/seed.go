package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var roomID string
	var token string

	cmd := &cobra.Command{
		Use:   "seed <listId>",
		Short: "Upload a local list to a room",
		Long:  "Upload a local list to a room. The room defaults to the list id; --password protects it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lists, err := ctx.openLists(cmd.Context())
			if err != nil {
				return err
			}
			defer lists.Close()

			list, ok := lists.List(args[0])
			if !ok {
				return fmt.Errorf("no local list %q", args[0])
			}
			if roomID == "" {
				roomID = list.ID
			}

			resp, err := newRoomsClient(ctx.server()).Seed(cmd.Context(), roomID, list, ctx.password(), token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded room %s with %q (%d items)\n", resp.RoomID, list.Name, len(list.Items))
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "Room to seed (defaults to the list id)")
	cmd.Flags().StringVar(&token, "token", "", "Seed token, when the server requires one")
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "fetch <roomId>",
		Short: "Show the list stored in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newRoomsClient(ctx.server()).Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list == nil {
				fmt.Fprintf(out, "Room %s is empty\n", args[0])
				return nil
			}
			fmt.Fprintln(out, renderItems(*list))

			if !save {
				return nil
			}
			lists, err := ctx.openLists(cmd.Context())
			if err != nil {
				return err
			}
			defer lists.Close()
			lists.Remote().ReplaceList(args[0], *list)
			fmt.Fprintf(out, "Saved as local list %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also store the list locally under the room id")
	return cmd
}
