package mutate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelist/internal/list/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func groceries() model.List {
	return model.List{
		ID:   "list_42",
		Name: "Groceries",
		Items: []model.Item{
			{ID: "1", Text: "Milk"},
			{ID: "2", Text: "Bread"},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestAddItem(t *testing.T) {
	in := groceries()
	out, err := AddItem(in, model.Item{ID: "3", Text: "  Eggs "}, t0)
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Eggs", out.Items[2].Text)
	assert.Equal(t, model.NewTimestamp(t0), out.UpdatedAt)
	assert.Len(t, in.Items, 2, "input must not change")

	_, err = AddItem(in, model.Item{ID: "4", Text: " \t"}, t0)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAddItemKeepsIDsUnique(t *testing.T) {
	in := groceries()
	out, err := AddItem(in, model.Item{ID: "1", Text: "Oat milk"}, t0)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	once, err := Apply(in, Op{Kind: OpAdd, Item: model.Item{ID: "3", Text: "Eggs"}}, t0)
	require.NoError(t, err)
	twice, err := Apply(once, Op{Kind: OpAdd, Item: model.Item{ID: "3", Text: "Eggs"}}, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, twice.Items, 3)
	assert.Equal(t, once, twice)

	deleted := DeleteItem(twice, "3", t0)
	assert.Equal(t, -1, deleted.ItemIndex("3"))
}

func TestAddItemsAssignsOrder(t *testing.T) {
	n := 0
	newID := func() model.ItemID { n++; return model.ItemID(string(rune('a' + n - 1))) }

	out := AddItems(groceries(), []string{"Eggs", "", "Tea"}, t0, newID)
	require.Len(t, out.Items, 4)
	assert.Equal(t, model.ItemID("a"), out.Items[2].ID)
	assert.Equal(t, 2, *out.Items[2].Order)
	assert.Equal(t, 3, *out.Items[3].Order)

	same := AddItems(groceries(), []string{" "}, t0, newID)
	assert.Zero(t, same.UpdatedAt)
}

func TestUpdateItemMergesPresentFields(t *testing.T) {
	out, err := UpdateItem(groceries(), model.ItemPatch{ID: "2", Text: ptr("Rye bread"), Checked: ptr(true)}, t0)
	require.NoError(t, err)
	assert.Equal(t, "Rye bread", out.Items[1].Text)
	assert.True(t, out.Items[1].Checked)
	require.NotNil(t, out.Items[1].CompletedAt)
	assert.Equal(t, model.NewTimestamp(t0), *out.Items[1].CompletedAt)

	out, err = UpdateItem(out, model.ItemPatch{ID: "2", Order: ptr(5)}, t0)
	require.NoError(t, err)
	assert.Equal(t, "Rye bread", out.Items[1].Text)
	assert.Equal(t, 5, *out.Items[1].Order)

	_, err = UpdateItem(out, model.ItemPatch{ID: "2", Text: ptr("")}, t0)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestUnknownIDIsNoOp(t *testing.T) {
	in := groceries()

	out, err := UpdateItem(in, model.ItemPatch{ID: "nope", Text: ptr("x")}, t0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, in, DeleteItem(in, "nope", t0))
	assert.Equal(t, in, ToggleItem(in, "nope", t0))
}

func TestToggleItemTracksCompletion(t *testing.T) {
	out := ToggleItem(groceries(), "1", t0)
	assert.True(t, out.Items[0].Checked)
	require.NotNil(t, out.Items[0].CompletedAt)

	out = ToggleItem(out, "1", t0.Add(time.Minute))
	assert.False(t, out.Items[0].Checked)
	assert.Nil(t, out.Items[0].CompletedAt)
}

func TestDeleteClearRename(t *testing.T) {
	out := DeleteItem(groceries(), "1", t0)
	require.Len(t, out.Items, 1)
	assert.Equal(t, model.ItemID("2"), out.Items[0].ID)

	out = ClearItems(out, t0)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)

	out, err := Rename(out, " Hardware ", t0)
	require.NoError(t, err)
	assert.Equal(t, "Hardware", out.Name)
	_, err = Rename(out, "   ", t0)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestReorderRenumbers(t *testing.T) {
	in := groceries()
	out := Reorder(in, []model.Item{in.Items[1], in.Items[0]}, t0)
	assert.Equal(t, model.ItemID("2"), out.Items[0].ID)
	assert.Equal(t, 0, *out.Items[0].Order)
	assert.Equal(t, 1, *out.Items[1].Order)
}

func TestPruneCompleted(t *testing.T) {
	l := groceries()
	l = ToggleItem(l, "1", t0)
	l = ToggleItem(l, "2", t0.Add(time.Hour))
	l.Items = append(l.Items, model.Item{ID: "legacy", Text: "Old", Checked: true})

	out, changed := PruneCompleted(l, DefaultCompletedTTL, t0.Add(12*time.Hour))
	require.True(t, changed)
	require.Len(t, out.Items, 2)
	assert.Equal(t, model.ItemID("2"), out.Items[0].ID)
	assert.Equal(t, model.ItemID("legacy"), out.Items[1].ID)

	_, changed = PruneCompleted(out, DefaultCompletedTTL, t0.Add(12*time.Hour))
	assert.False(t, changed)
}

func TestReplaceListIsLastWriteWins(t *testing.T) {
	src := model.List{ID: "list_42", Name: "Theirs", UpdatedAt: 1}
	out := ReplaceList(src, t0)
	assert.Equal(t, "Theirs", out.Name)
	assert.NotNil(t, out.Items)
	assert.Equal(t, model.NewTimestamp(t0), out.UpdatedAt)
}

func TestApply(t *testing.T) {
	l := groceries()
	var err error

	l, err = Apply(l, Op{Kind: OpAdd, Item: model.Item{ID: "3", Text: "Tea"}}, t0)
	require.NoError(t, err)
	l, err = Apply(l, Op{Kind: OpToggle, ID: "3"}, t0)
	require.NoError(t, err)
	l, err = Apply(l, Op{Kind: OpUpdate, Patch: model.ItemPatch{ID: "3", Text: ptr("Green tea")}}, t0)
	require.NoError(t, err)
	l, err = Apply(l, Op{Kind: OpDelete, ID: "1"}, t0)
	require.NoError(t, err)

	require.Len(t, l.Items, 2)
	assert.Equal(t, "Green tea", l.Items[1].Text)
	assert.True(t, l.Items[1].Checked)

	_, err = Apply(l, Op{}, t0)
	assert.Error(t, err)
}
