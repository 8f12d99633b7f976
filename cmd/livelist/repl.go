package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"livelist/internal/list/model"
	"livelist/internal/liststore"
	"livelist/internal/live"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingArg     = errors.New("missing argument")
	errQuit           = errors.New("quit")
)

const replHelp = `Commands:
  add <text>          add an item
  check <n|id>        toggle an item
  edit <n|id> <text>  change an item's text
  rm <n|id>           remove an item
  clear               remove every item
  rename <name>       rename the list
  show                print the list
  lists               print all local lists
  new <name>          create a list and switch to it
  use <id>            switch to another local list
  who                 show who is here and who is typing
  typing [on|off]     tell others you are typing
  share               print the share link
  quit                leave`

type lineCommand struct {
	name string
	ref  string
	text string
}

// parseLine splits an input line into a command. Blank lines parse to an
// empty name.
func parseLine(line string) (lineCommand, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return lineCommand{}, nil
	}
	name, rest, _ := strings.Cut(line, " ")
	cmd := lineCommand{name: strings.ToLower(name)}
	rest = strings.TrimSpace(rest)

	switch cmd.name {
	case "add", "rename", "new":
		if rest == "" {
			return cmd, fmt.Errorf("%s: %w", cmd.name, errMissingArg)
		}
		cmd.text = rest
	case "check", "rm", "use":
		if rest == "" {
			return cmd, fmt.Errorf("%s: %w", cmd.name, errMissingArg)
		}
		cmd.ref = rest
	case "edit":
		ref, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if ref == "" || text == "" {
			return cmd, fmt.Errorf("edit: %w", errMissingArg)
		}
		cmd.ref, cmd.text = ref, text
	case "typing":
		switch rest {
		case "", "on", "off":
			cmd.text = rest
		default:
			return cmd, fmt.Errorf("typing: expected on or off, got %q", rest)
		}
	case "clear", "show", "lists", "who", "share", "help":
	case "quit", "exit", "q":
		cmd.name = "quit"
	default:
		return cmd, fmt.Errorf("%w %q, try help", errUnknownCommand, cmd.name)
	}
	return cmd, nil
}

// resolveItem finds an item by its 1-based position or its id.
func resolveItem(l model.List, ref string) (model.ItemID, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(l.Items) {
			return "", fmt.Errorf("no item %d in %q", n, l.Name)
		}
		return l.Items[n-1].ID, nil
	}
	if l.ItemIndex(model.ItemID(ref)) < 0 {
		return "", fmt.Errorf("no item %q in %q", ref, l.Name)
	}
	return model.ItemID(ref), nil
}

// repl edits the active list. Output may come from connection goroutines too,
// so every write goes through print.
type repl struct {
	store    *liststore.Store
	session  *live.Session
	password string

	outMu sync.Mutex
	out   io.Writer
}

func (r *repl) print(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *repl) activeList() (model.List, error) {
	l, ok := r.store.List(r.store.ActiveListID())
	if !ok {
		return model.List{}, liststore.ErrUnknownList
	}
	return l, nil
}

func (r *repl) exec(cmd lineCommand) error {
	local := r.store.Local()
	listID := r.store.ActiveListID()

	withItem := func(fn func(id model.ItemID) error) error {
		l, err := r.activeList()
		if err != nil {
			return err
		}
		id, err := resolveItem(l, cmd.ref)
		if err != nil {
			return err
		}
		return fn(id)
	}

	switch cmd.name {
	case "":
		return nil
	case "add":
		_, err := local.AddItem(listID, cmd.text)
		return err
	case "check":
		return withItem(func(id model.ItemID) error { return local.ToggleItem(listID, id) })
	case "edit":
		return withItem(func(id model.ItemID) error { return local.EditItem(listID, id, cmd.text) })
	case "rm":
		return withItem(func(id model.ItemID) error { return local.RemoveItem(listID, id) })
	case "clear":
		return local.ClearList(listID)
	case "rename":
		return local.RenameList(listID, cmd.text)
	case "show":
		l, err := r.activeList()
		if err != nil {
			return err
		}
		r.print("%s", renderItems(l))
	case "lists":
		r.print("%s", renderLists(r.store.State()))
	case "new":
		l := local.AddList(cmd.text)
		r.print("Switched to %s (%s)", l.Name, l.ID)
	case "use":
		if _, ok := r.store.List(cmd.ref); !ok {
			return fmt.Errorf("no local list %q", cmd.ref)
		}
		local.SetActiveList(cmd.ref)
	case "who":
		r.print("%s", r.who(listID))
	case "typing":
		switch cmd.text {
		case "on":
			r.session.BroadcastTypingStart(listID)
		case "off":
			r.session.BroadcastTypingStop(listID)
		default:
			r.print("%s", r.typing(listID))
		}
	case "share":
		r.print("%s", r.session.ShareURL(listID, r.password))
	case "help":
		r.print("%s", replHelp)
	case "quit":
		return errQuit
	}
	return nil
}

func (r *repl) who(listID string) string {
	p := r.session.Presence(listID)
	if p == nil {
		return "Not connected"
	}
	users := p.Users()
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Avatar
	}
	return renderUsers("Here", names) + "\n" + r.typing(listID)
}

func (r *repl) typing(listID string) string {
	t := r.session.Typing(listID)
	if t == nil {
		return renderUsers("Typing", nil)
	}
	users := t.Users()
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Avatar
	}
	return renderUsers("Typing", names)
}

// run reads commands from lines until quit, EOF or ctx is done.
func (r *repl) run(ctx context.Context, lines <-chan string, prompt bool) error {
	for {
		if prompt {
			r.outMu.Lock()
			fmt.Fprint(r.out, "> ")
			r.outMu.Unlock()
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseLine(line)
			if err == nil {
				err = r.exec(cmd)
			}
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				r.print("error: %v", err)
			}
		}
	}
}
