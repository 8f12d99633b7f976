package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelist/internal/list/model"
	"livelist/internal/liststore"
	"livelist/internal/live"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want lineCommand
	}{
		{"", lineCommand{}},
		{"   ", lineCommand{}},
		{"add Oat milk", lineCommand{name: "add", text: "Oat milk"}},
		{"ADD  eggs ", lineCommand{name: "add", text: "eggs"}},
		{"check 2", lineCommand{name: "check", ref: "2"}},
		{"edit 1 Whole milk", lineCommand{name: "edit", ref: "1", text: "Whole milk"}},
		{"rm abc", lineCommand{name: "rm", ref: "abc"}},
		{"rename Weekend shop", lineCommand{name: "rename", text: "Weekend shop"}},
		{"typing", lineCommand{name: "typing"}},
		{"typing on", lineCommand{name: "typing", text: "on"}},
		{"show", lineCommand{name: "show"}},
		{"exit", lineCommand{name: "quit"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"add", "check", "edit 1", "edit", "rename  ", "use"} {
		_, err := parseLine(line)
		assert.ErrorIs(t, err, errMissingArg, line)
	}
	_, err := parseLine("dance")
	assert.ErrorIs(t, err, errUnknownCommand)
	_, err = parseLine("typing maybe")
	assert.Error(t, err)
}

func TestResolveItem(t *testing.T) {
	l := model.List{Name: "Groceries", Items: []model.Item{{ID: "a", Text: "Milk"}, {ID: "b", Text: "Eggs"}}}

	id, err := resolveItem(l, "2")
	require.NoError(t, err)
	assert.Equal(t, model.ItemID("b"), id)

	id, err = resolveItem(l, "a")
	require.NoError(t, err)
	assert.Equal(t, model.ItemID("a"), id)

	_, err = resolveItem(l, "3")
	assert.Error(t, err)
	_, err = resolveItem(l, "0")
	assert.Error(t, err)
	_, err = resolveItem(l, "zzz")
	assert.Error(t, err)
}

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	store, err := liststore.Open(context.Background(), nil)
	require.NoError(t, err)
	var out bytes.Buffer
	return &repl{
		store:    store,
		session:  live.NewSession(store, live.SessionConfig{Server: "http://lists.example"}),
		password: "secret",
		out:      &out,
	}, &out
}

func runLines(t *testing.T, r *repl, lines ...string) {
	t.Helper()
	ch := make(chan string, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	require.NoError(t, r.run(context.Background(), ch, false))
}

func TestReplEditsActiveList(t *testing.T) {
	r, out := newTestRepl(t)

	runLines(t, r,
		"add Milk",
		"add Eggs",
		"add Bread",
		"check 1",
		"edit 2 Free-range eggs",
		"rm 3",
		"rename Groceries",
		"show",
	)

	l, ok := r.store.List(r.store.ActiveListID())
	require.True(t, ok)
	assert.Equal(t, "Groceries", l.Name)
	require.Len(t, l.Items, 2)
	assert.True(t, l.Items[0].Checked)
	assert.Equal(t, "Free-range eggs", l.Items[1].Text)
	assert.Contains(t, out.String(), "Free-range eggs")
	assert.NotContains(t, out.String(), "error:")
}

func TestReplReportsErrorsAndKeepsGoing(t *testing.T) {
	r, out := newTestRepl(t)

	runLines(t, r, "check 4", "fly away", "add Milk")

	assert.Contains(t, out.String(), "error: no item 4")
	assert.Contains(t, out.String(), "error: unknown command")
	l, _ := r.store.List(r.store.ActiveListID())
	assert.Len(t, l.Items, 1)
}

func TestReplStopsOnQuit(t *testing.T) {
	r, _ := newTestRepl(t)

	runLines(t, r, "add Milk", "quit", "add Eggs")

	l, _ := r.store.List(r.store.ActiveListID())
	assert.Len(t, l.Items, 1)
}

func TestReplSwitchesLists(t *testing.T) {
	r, out := newTestRepl(t)

	runLines(t, r, "new Hardware", "add Nails", "use "+liststore.DefaultListID, "lists")

	assert.Equal(t, liststore.DefaultListID, r.store.ActiveListID())
	assert.Len(t, r.store.State().Lists, 2)
	assert.Contains(t, out.String(), "Hardware")
	assert.Contains(t, out.String(), "Switched to Hardware")
}

func TestReplOfflineCommands(t *testing.T) {
	r, out := newTestRepl(t)

	runLines(t, r, "who", "typing", "typing on", "share")

	assert.Contains(t, out.String(), "Not connected")
	assert.Contains(t, out.String(), "Typing: nobody")
	assert.Contains(t, out.String(), "http://lists.example/?list="+liststore.DefaultListID+"&pwd=secret")
}

func TestAnnounceRemoteOnlyForActiveList(t *testing.T) {
	r, out := newTestRepl(t)
	unsubscribe := r.store.Subscribe(r.announceRemote)
	defer unsubscribe()

	_, err := r.store.Local().AddItem("", "Local only")
	require.NoError(t, err)
	assert.Empty(t, out.String())

	r.store.Remote().ReplaceList("other", model.List{Name: "Elsewhere", Items: []model.Item{}})
	assert.Empty(t, out.String())

	active := r.store.ActiveListID()
	r.store.Remote().ReplaceList(active, model.List{Name: "Shared", Items: []model.Item{{ID: "x", Text: "From Bob"}}})
	assert.Contains(t, out.String(), "From Bob")
}
