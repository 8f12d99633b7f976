package liststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const (
	keyLists        = "lists"
	keyActiveListID = "activeListId"
	keyVersion      = "version"
)

// SQLitePersister stores the state under three fixed keys in a key/value table.
type SQLitePersister struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

func (p *SQLitePersister) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *SQLitePersister) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

// Load reads the saved state. Unparseable lists are treated as absent so the
// store falls back to its defaults.
func (p *SQLitePersister) Load(ctx context.Context) (State, bool, error) {
	raw, ok, err := p.get(ctx, keyLists)
	if err != nil || !ok {
		return State{}, false, err
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st.Lists); err != nil {
		return State{}, false, nil
	}
	if st.ActiveListID, _, err = p.get(ctx, keyActiveListID); err != nil {
		return State{}, false, err
	}
	v, _, err := p.get(ctx, keyVersion)
	if err != nil {
		return State{}, false, err
	}
	st.Version, _ = strconv.Atoi(v)
	return st, true, nil
}

// Save writes all three keys in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, st State) error {
	lists, err := json.Marshal(st.Lists)
	if err != nil {
		return fmt.Errorf("encode lists: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	values := map[string]string{
		keyLists:        string(lists),
		keyActiveListID: st.ActiveListID,
		keyVersion:      strconv.Itoa(st.Version),
	}
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return tx.Commit()
}
