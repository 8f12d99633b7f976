// Package liststore is the client's local copy of its lists. Every change is
// tagged with the Origin that caused it, so the live sync layer can tell its
// own remote applies apart from edits it must broadcast.
package liststore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livelist/internal/list/model"
	"livelist/internal/list/mutate"
	"livelist/pkg/logger"
)

const (
	CurrentVersion = 1
	DefaultListID  = "default"
	defaultName    = "Default List"
	newListName    = "New List"
)

var ErrUnknownList = errors.New("unknown list")

type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

type State struct {
	Lists        []model.List `json:"lists"`
	ActiveListID string       `json:"activeListId"`
	Version      int          `json:"version"`
}

func (s State) clone() State {
	out := s
	out.Lists = make([]model.List, len(s.Lists))
	for i, l := range s.Lists {
		out.Lists[i] = l.Clone()
	}
	return out
}

func (s State) index(id string) int {
	for i := range s.Lists {
		if s.Lists[i].ID == id {
			return i
		}
	}
	return -1
}

// List returns the list with id.
func (s State) List(id string) (model.List, bool) {
	if i := s.index(id); i >= 0 {
		return s.Lists[i], true
	}
	return model.List{}, false
}

// Change is delivered to subscribers after every mutation. ListID names the
// list that changed, or is empty for changes to the set of lists.
type Change struct {
	State  State
	Origin Origin
	ListID string
}

// Persister loads and saves the whole state. Load reports false when nothing
// has been saved yet.
type Persister interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, s State) error
}

type Store struct {
	persister Persister
	now       func() time.Time
	newID     func() model.ItemID

	mu    sync.Mutex
	state State

	// notifyMu keeps subscribers seeing changes in the order they were made.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(Change)
	nextSub  int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() model.ItemID) Option {
	return func(s *Store) { s.newID = newID }
}

// Open loads the saved state from p, or starts with a single default list.
// A nil Persister keeps the state in memory only.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: p,
		now:       time.Now,
		newID:     func() model.ItemID { return model.ItemID(uuid.NewString()) },
		subs:      make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}

	var (
		st    State
		found bool
	)
	if p != nil {
		var err error
		st, found, err = p.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load lists: %w", err)
		}
	}

	if !found || len(st.Lists) == 0 {
		st = State{Lists: []model.List{s.defaultList()}, ActiveListID: DefaultListID}
		found = false
	}
	if st.index(st.ActiveListID) < 0 {
		st.ActiveListID = st.Lists[0].ID
	}
	st.Version = CurrentVersion
	s.state = st

	if !found {
		if err := s.persist(ctx, st); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) defaultList() model.List {
	ts := model.NewTimestamp(s.now())
	return model.List{ID: DefaultListID, Name: defaultName, Items: []model.Item{}, CreatedAt: ts, UpdatedAt: ts}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// List returns a copy of the list with id.
func (s *Store) List(id string) (model.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.List(id)
	if !ok {
		return model.List{}, false
	}
	return l.Clone(), true
}

func (s *Store) ActiveListID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveListID
}

// Subscribe registers fn for every later change and returns its cancel
// function. fn runs on the mutating goroutine and must not mutate the store.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) persist(ctx context.Context, st State) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, st); err != nil {
		return fmt.Errorf("save lists: %w", err)
	}
	return nil
}

// update runs fn on a copy of the state. When fn reports a change the copy
// becomes the state, is persisted and is announced to subscribers.
func (s *Store) update(origin Origin, fn func(st *State) (listID string, changed bool, err error)) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.state.clone()
	listID, changed, err := fn(&next)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	s.state = next
	snapshot := next.clone()
	s.mu.Unlock()

	if err := s.persist(context.Background(), snapshot); err != nil {
		logger.Sugar.Warnf("Lists: %v", err)
	}

	s.subsMu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub(Change{State: snapshot, Origin: origin, ListID: listID})
	}
	return nil
}

// Editor mutates the store on behalf of one Origin.
type Editor struct {
	s      *Store
	origin Origin
}

// Local is for edits made by this user.
func (s *Store) Local() Editor { return Editor{s: s, origin: OriginLocal} }

// Remote is for changes received from a live room.
func (s *Store) Remote() Editor { return Editor{s: s, origin: OriginRemote} }

// editList applies fn to the list with listID, or the active list when listID is empty.
func (e Editor) editList(listID string, fn func(l model.List, now time.Time) (model.List, error)) error {
	return e.s.update(e.origin, func(st *State) (string, bool, error) {
		if listID == "" {
			listID = st.ActiveListID
		}
		i := st.index(listID)
		if i < 0 {
			return "", false, fmt.Errorf("%w: %s", ErrUnknownList, listID)
		}
		next, err := fn(st.Lists[i], e.s.now())
		if err != nil {
			return "", false, err
		}
		st.Lists[i] = next
		return listID, true, nil
	})
}

// AddList creates an empty list and makes it active.
func (e Editor) AddList(name string) model.List {
	name = strings.TrimSpace(name)
	if name == "" {
		name = newListName
	}
	ts := model.NewTimestamp(e.s.now())
	l := model.List{ID: "list_" + uuid.NewString(), Name: name, Items: []model.Item{}, CreatedAt: ts, UpdatedAt: ts}
	_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
		st.Lists = append(st.Lists, l)
		st.ActiveListID = l.ID
		return "", true, nil
	})
	return l.Clone()
}

// EnsureList creates an empty list with id if none exists.
func (e Editor) EnsureList(id, name string) {
	_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
		if st.index(id) >= 0 {
			return "", false, nil
		}
		ts := model.NewTimestamp(e.s.now())
		st.Lists = append(st.Lists, model.List{ID: id, Name: name, Items: []model.Item{}, CreatedAt: ts, UpdatedAt: ts})
		return "", true, nil
	})
}

// DeleteList removes a list. The store always keeps at least one list.
func (e Editor) DeleteList(id string) {
	_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
		i := st.index(id)
		if i < 0 {
			return "", false, nil
		}
		st.Lists = append(st.Lists[:i], st.Lists[i+1:]...)
		switch {
		case len(st.Lists) == 0:
			st.Lists = []model.List{e.s.defaultList()}
			st.ActiveListID = DefaultListID
		case st.ActiveListID == id:
			st.ActiveListID = st.Lists[0].ID
		}
		return "", true, nil
	})
}

// SetActiveList selects id. Unknown ids are ignored.
func (e Editor) SetActiveList(id string) {
	_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
		if st.index(id) < 0 || st.ActiveListID == id {
			return "", false, nil
		}
		st.ActiveListID = id
		return "", true, nil
	})
}

// AddItem appends an unchecked item with a fresh id.
func (e Editor) AddItem(listID, text string) (model.Item, error) {
	item := model.Item{ID: e.s.newID(), Text: text}
	err := e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		next, err := mutate.AddItem(l, item, now)
		if err == nil {
			item = next.Items[len(next.Items)-1]
		}
		return next, err
	})
	return item, err
}

func (e Editor) AddItems(listID string, texts []string) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.AddItems(l, texts, now, e.s.newID), nil
	})
}

func (e Editor) ToggleItem(listID string, id model.ItemID) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.ToggleItem(l, id, now), nil
	})
}

func (e Editor) EditItem(listID string, id model.ItemID, text string) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.UpdateItem(l, model.ItemPatch{ID: id, Text: &text}, now)
	})
}

func (e Editor) RemoveItem(listID string, id model.ItemID) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.DeleteItem(l, id, now), nil
	})
}

func (e Editor) ClearList(listID string) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.ClearItems(l, now), nil
	})
}

func (e Editor) RenameList(listID, name string) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.Rename(l, name, now)
	})
}

func (e Editor) ReorderItems(listID string, items []model.Item) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.Reorder(l, items, now), nil
	})
}

// ApplyOp runs a single-item mutation received from a room. Item ids are
// kept as sent so every replica ends up with the same ids.
func (e Editor) ApplyOp(listID string, op mutate.Op) error {
	return e.editList(listID, func(l model.List, now time.Time) (model.List, error) {
		return mutate.Apply(l, op, now)
	})
}

// ReplaceList overwrites the list stored under listID with src, keeping
// listID as its id. A missing list is created.
func (e Editor) ReplaceList(listID string, src model.List) {
	_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
		next := src.Clone()
		next.ID = listID
		if next.Items == nil {
			next.Items = []model.Item{}
		}
		if i := st.index(listID); i >= 0 {
			st.Lists[i] = next
		} else {
			st.Lists = append(st.Lists, next)
		}
		return listID, true, nil
	})
}

// PruneCompleted drops items checked more than ttl ago from every list and
// reports how many lists changed. Each changed list is announced separately.
func (e Editor) PruneCompleted(ttl time.Duration) int {
	changed := 0
	for _, l := range e.s.State().Lists {
		id := l.ID
		_ = e.s.update(e.origin, func(st *State) (string, bool, error) {
			i := st.index(id)
			if i < 0 {
				return "", false, nil
			}
			next, ok := mutate.PruneCompleted(st.Lists[i], ttl, e.s.now())
			if !ok {
				return "", false, nil
			}
			st.Lists[i] = next
			changed++
			return id, true, nil
		})
	}
	return changed
}

// RunPruner calls PruneCompleted once and then every interval until ctx is done.
func (s *Store) RunPruner(ctx context.Context, ttl, interval time.Duration) {
	s.Local().PruneCompleted(ttl)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Local().PruneCompleted(ttl); n > 0 {
				logger.Sugar.Debugf("Lists: pruned completed items from %d lists", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
