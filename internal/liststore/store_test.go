package liststore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelist/internal/list/model"
	"livelist/internal/list/mutate"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() model.ItemID {
	n := 0
	return func() model.ItemID {
		n++
		return model.ItemID(fmt.Sprintf("item-%d", n))
	}
}

func openMemory(t *testing.T, now *time.Time) *Store {
	t.Helper()
	s, err := Open(context.Background(), nil,
		WithClock(func() time.Time { return *now }),
		WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	return s
}

func TestOpenStartsWithDefaultList(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	st := s.State()
	require.Len(t, st.Lists, 1)
	assert.Equal(t, DefaultListID, st.Lists[0].ID)
	assert.Equal(t, "Default List", st.Lists[0].Name)
	assert.Equal(t, DefaultListID, st.ActiveListID)
	assert.Equal(t, CurrentVersion, st.Version)
}

func TestChangesCarryOrigin(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	var changes []Change
	cancel := s.Subscribe(func(c Change) { changes = append(changes, c) })

	_, err := s.Local().AddItem("", "Milk")
	require.NoError(t, err)
	require.NoError(t, s.Remote().ApplyOp(DefaultListID, mutate.Op{Kind: mutate.OpAdd, Item: model.Item{ID: "remote-1", Text: "Eggs"}}))

	require.Len(t, changes, 2)
	assert.Equal(t, OriginLocal, changes[0].Origin)
	assert.Equal(t, DefaultListID, changes[0].ListID)
	assert.Equal(t, OriginRemote, changes[1].Origin)

	l, ok := s.List(DefaultListID)
	require.True(t, ok)
	require.Len(t, l.Items, 2)
	assert.Equal(t, model.ItemID("item-1"), l.Items[0].ID)
	assert.Equal(t, model.ItemID("remote-1"), l.Items[1].ID)

	cancel()
	require.NoError(t, s.Local().ToggleItem("", "item-1"))
	assert.Len(t, changes, 2)
}

func TestRemoteItemAddIsIdempotent(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	op := mutate.Op{Kind: mutate.OpAdd, Item: model.Item{ID: "remote-1", Text: "Eggs"}}
	require.NoError(t, s.Remote().ApplyOp(DefaultListID, op))
	require.NoError(t, s.Remote().ApplyOp(DefaultListID, op))

	l, ok := s.List(DefaultListID)
	require.True(t, ok)
	require.Len(t, l.Items, 1)
	assert.Equal(t, model.ItemID("remote-1"), l.Items[0].ID)
}

func TestEmptyTextIsRejectedWithoutNotifying(t *testing.T) {
	now := t0
	s := openMemory(t, &now)
	notified := false
	s.Subscribe(func(Change) { notified = true })

	_, err := s.Local().AddItem("", "   ")
	assert.ErrorIs(t, err, mutate.ErrEmptyText)
	assert.ErrorIs(t, s.Local().EditItem("", "x", ""), mutate.ErrEmptyText)
	assert.ErrorIs(t, s.Local().ToggleItem("nope", "x"), ErrUnknownList)
	assert.False(t, notified)
}

func TestReplaceListKeepsLocalID(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	s.Remote().ReplaceList(DefaultListID, model.List{ID: "server-id", Name: "Shared", UpdatedAt: 42})
	l, ok := s.List(DefaultListID)
	require.True(t, ok)
	assert.Equal(t, DefaultListID, l.ID)
	assert.Equal(t, "Shared", l.Name)
	assert.Equal(t, model.Timestamp(42), l.UpdatedAt)
	assert.NotNil(t, l.Items)

	s.Remote().ReplaceList("joined", model.List{Name: "Joined"})
	_, ok = s.List("joined")
	assert.True(t, ok)
}

func TestDeleteListKeepsOneList(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	added := s.Local().AddList("  ")
	assert.Equal(t, "New List", added.Name)
	assert.Equal(t, added.ID, s.ActiveListID())

	s.Local().DeleteList(added.ID)
	assert.Equal(t, DefaultListID, s.ActiveListID())

	s.Local().DeleteList(DefaultListID)
	st := s.State()
	require.Len(t, st.Lists, 1)
	assert.Equal(t, DefaultListID, st.Lists[0].ID)

	s.Local().SetActiveList("missing")
	assert.Equal(t, DefaultListID, s.ActiveListID())
}

func TestPruneCompleted(t *testing.T) {
	now := t0
	s := openMemory(t, &now)

	require.NoError(t, s.Local().AddItems("", []string{"old", "fresh", "open", " "}))
	require.NoError(t, s.Local().ToggleItem("", "item-1"))
	now = t0.Add(11 * time.Hour)
	require.NoError(t, s.Local().ToggleItem("", "item-2"))

	now = t0.Add(12 * time.Hour)
	var origins []Origin
	s.Subscribe(func(c Change) { origins = append(origins, c.Origin) })
	assert.Equal(t, 1, s.Local().PruneCompleted(mutate.DefaultCompletedTTL))
	assert.Equal(t, []Origin{OriginLocal}, origins)

	l, _ := s.List(DefaultListID)
	require.Len(t, l.Items, 2)
	assert.Equal(t, "fresh", l.Items[0].Text)
	assert.Equal(t, "open", l.Items[1].Text)

	assert.Equal(t, 0, s.Local().PruneCompleted(mutate.DefaultCompletedTTL))
}

func TestSQLitePersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lists.db")

	p, err := OpenSQLite(path)
	require.NoError(t, err)
	now := t0
	s, err := Open(ctx, p, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	groceries := s.Local().AddList("Groceries")
	_, err = s.Local().AddItem(groceries.ID, "Milk")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p, err = OpenSQLite(path)
	require.NoError(t, err)
	defer p.Close()
	reopened, err := Open(ctx, p)
	require.NoError(t, err)

	st := reopened.State()
	require.Len(t, st.Lists, 2)
	assert.Equal(t, groceries.ID, st.ActiveListID)
	l, ok := st.List(groceries.ID)
	require.True(t, ok)
	require.Len(t, l.Items, 1)
	assert.Equal(t, "Milk", l.Items[0].Text)
}

func TestSQLiteLoadEmpty(t *testing.T) {
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "lists.db"))
	require.NoError(t, err)
	defer p.Close()

	_, found, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
