package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"livelist/internal/list/model"
	"livelist/internal/list/mutate"
	"livelist/internal/liststore"
	"livelist/internal/live"
)

const pruneInterval = 10 * time.Minute

func newJoinCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "join [listId]",
		Short: "Edit a list live with everyone in its room",
		Long: "Edit a list live with everyone in its room. Without listId the active local list is used. " +
			"The room id is the list id.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lists, err := ctx.openLists(runCtx)
			if err != nil {
				return err
			}
			defer lists.Close()

			avatar, err := ctx.avatar()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				lists.Local().EnsureList(args[0], args[0])
				lists.Local().SetActiveList(args[0])
			}

			r := &repl{store: lists.Store, password: ctx.password(), out: cmd.OutOrStdout()}
			r.session = live.NewSession(lists.Store, live.SessionConfig{
				Server:   ctx.server(),
				Avatar:   avatar,
				OnStatus: r.status,
			})
			defer r.session.Close()

			unsubscribe := lists.Subscribe(r.announceRemote)
			defer unsubscribe()

			go lists.RunPruner(runCtx, mutate.DefaultCompletedTTL, pruneInterval)
			go func() {
				if err := r.session.Follow(runCtx, r.password); err != nil && !errors.Is(err, context.Canceled) {
					r.print("error: %v", err)
				}
			}()

			r.print("You are %s. Type help for commands.", avatar)
			prompt := isTerminal(os.Stdin)
			return r.run(runCtx, readLines(cmd.InOrStdin()), prompt)
		},
	}
}

// status reports connection changes of the followed list.
func (r *repl) status(listID string, connected bool, err error) {
	switch {
	case connected:
		r.print("Connected, list %s is live", listID)
		if p := r.session.Presence(listID); p != nil {
			p.Subscribe(func(users []model.PresenceUser) {
				names := make([]string, len(users))
				for i, u := range users {
					names[i] = u.Avatar
				}
				r.print("%s", renderUsers("Here", names))
			})
		}
	case errors.Is(err, live.ErrRejected):
		r.print("Room refused list %s: wrong password?", listID)
	case err != nil:
		r.print("Disconnected from list %s: %v", listID, err)
	}
}

// announceRemote prints the active list whenever someone else changes it.
func (r *repl) announceRemote(c liststore.Change) {
	if c.Origin != liststore.OriginRemote || c.ListID != c.State.ActiveListID {
		return
	}
	if l, ok := c.State.List(c.ListID); ok {
		r.print("%s", renderItems(l))
	}
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
