// Package mutate holds the list mutations shared by the room actor and the
// client list store. Both sides apply the same functions so they converge.
// Every function returns a new List and leaves its input untouched.
package mutate

import (
	"errors"
	"strings"
	"time"

	"livelist/internal/list/model"
)

var (
	ErrEmptyText = errors.New("item text is empty")
	ErrEmptyName = errors.New("list name is empty")
)

// DefaultCompletedTTL is how long a checked item survives PruneCompleted.
const DefaultCompletedTTL = 12 * time.Hour

// AddItem appends item. Ids are unique within a list, so adding an id that is
// already present leaves l unchanged; a redelivered item_add is a no-op.
func AddItem(l model.List, item model.Item, now time.Time) (model.List, error) {
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return l, ErrEmptyText
	}
	if l.ItemIndex(item.ID) >= 0 {
		return l, nil
	}
	out := l.Clone()
	item.Text = text
	out.Items = append(out.Items, item)
	out.UpdatedAt = model.NewTimestamp(now)
	return out, nil
}

// AddItems appends one unchecked item per non-blank text, ordered after the existing items.
func AddItems(l model.List, texts []string, now time.Time, newID func() model.ItemID) model.List {
	out := l.Clone()
	added := 0
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		order := len(l.Items) + added
		out.Items = append(out.Items, model.Item{ID: newID(), Text: t, Order: &order})
		added++
	}
	if added > 0 {
		out.UpdatedAt = model.NewTimestamp(now)
	}
	return out
}

// UpdateItem merges the present fields of p into the item with p.ID.
// An unknown id is not an error: the item may have been deleted concurrently.
func UpdateItem(l model.List, p model.ItemPatch, now time.Time) (model.List, error) {
	var text string
	if p.Text != nil {
		text = strings.TrimSpace(*p.Text)
		if text == "" {
			return l, ErrEmptyText
		}
	}
	idx := l.ItemIndex(p.ID)
	if idx < 0 {
		return l, nil
	}
	out := l.Clone()
	it := &out.Items[idx]
	if p.Text != nil {
		it.Text = text
	}
	if p.Checked != nil && *p.Checked != it.Checked {
		setChecked(it, *p.Checked, now)
	}
	if p.Order != nil {
		o := *p.Order
		it.Order = &o
	}
	out.UpdatedAt = model.NewTimestamp(now)
	return out, nil
}

func DeleteItem(l model.List, id model.ItemID, now time.Time) model.List {
	idx := l.ItemIndex(id)
	if idx < 0 {
		return l
	}
	out := l.Clone()
	out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
	out.UpdatedAt = model.NewTimestamp(now)
	return out
}

// ToggleItem flips Checked and maintains CompletedAt.
func ToggleItem(l model.List, id model.ItemID, now time.Time) model.List {
	idx := l.ItemIndex(id)
	if idx < 0 {
		return l
	}
	out := l.Clone()
	it := &out.Items[idx]
	setChecked(it, !it.Checked, now)
	out.UpdatedAt = model.NewTimestamp(now)
	return out
}

func setChecked(it *model.Item, checked bool, now time.Time) {
	it.Checked = checked
	if checked {
		ts := model.NewTimestamp(now)
		it.CompletedAt = &ts
	} else {
		it.CompletedAt = nil
	}
}

func ClearItems(l model.List, now time.Time) model.List {
	out := l.Clone()
	out.Items = []model.Item{}
	out.UpdatedAt = model.NewTimestamp(now)
	return out
}

func Rename(l model.List, name string, now time.Time) (model.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return l, ErrEmptyName
	}
	out := l.Clone()
	out.Name = name
	out.UpdatedAt = model.NewTimestamp(now)
	return out, nil
}

// Reorder replaces the items with the given sequence and renumbers Order from zero.
func Reorder(l model.List, items []model.Item, now time.Time) model.List {
	out := l.Clone()
	out.Items = make([]model.Item, len(items))
	for i, it := range items {
		order := i
		it.Order = &order
		out.Items[i] = it
	}
	out.UpdatedAt = model.NewTimestamp(now)
	return out
}

// PruneCompleted drops checked items completed more than ttl ago. Checked
// items without a completion time are kept.
func PruneCompleted(l model.List, ttl time.Duration, now time.Time) (model.List, bool) {
	cutoff := now.Add(-ttl)
	kept := make([]model.Item, 0, len(l.Items))
	for _, it := range l.Items {
		if it.Checked && it.CompletedAt != nil && !it.CompletedAt.Time().After(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	if len(kept) == len(l.Items) {
		return l, false
	}
	out := l.Clone()
	out.Items = kept
	out.UpdatedAt = model.NewTimestamp(now)
	return out, true
}

// ReplaceList is whole-list last-write-wins: src becomes the list, stamped with now.
func ReplaceList(src model.List, now time.Time) model.List {
	out := src.Clone()
	if out.Items == nil {
		out.Items = []model.Item{}
	}
	out.UpdatedAt = model.NewTimestamp(now)
	return out
}

// Apply runs a single-item mutation against l. It is the
// common entry point used when replaying item_* messages.
func Apply(l model.List, op Op, now time.Time) (model.List, error) {
	switch op.Kind {
	case OpAdd:
		return AddItem(l, op.Item, now)
	case OpUpdate:
		return UpdateItem(l, op.Patch, now)
	case OpDelete:
		return DeleteItem(l, op.ID, now), nil
	case OpToggle:
		return ToggleItem(l, op.ID, now), nil
	}
	return l, errors.New("unknown item operation")
}

type OpKind int

const (
	OpAdd OpKind = iota + 1
	OpUpdate
	OpDelete
	OpToggle
)

// Op is one single-item mutation.
type Op struct {
	Kind  OpKind
	Item  model.Item
	Patch model.ItemPatch
	ID    model.ItemID
}
