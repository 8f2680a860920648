package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/livepoll-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS polls (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	question   TEXT NOT NULL,
	reason     TEXT NOT NULL,
	opened_at  DATETIME NOT NULL,
	closed_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_options (
	poll_seq INTEGER NOT NULL,
	position INTEGER NOT NULL,
	label    TEXT NOT NULL,
	votes    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (poll_seq, position),
	FOREIGN KEY (poll_seq) REFERENCES polls(seq) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS poll_responses (
	poll_seq INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	answer   TEXT NOT NULL,
	PRIMARY KEY (poll_seq, position),
	FOREIGN KEY (poll_seq) REFERENCES polls(seq) ON DELETE CASCADE
);
`

// SQLiteStore implements store.HistoryStore for SQLite.
type SQLiteStore struct {
	db    *sql.DB
	limit int
}

var _ store.HistoryStore = (*SQLiteStore)(nil)

// New opens (or creates) the SQLite database at dbPath and applies the schema.
// limit > 0 restricts List to the newest limit records.
func New(dbPath string, limit int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, limit: limit}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists a closed poll with its options, tally and responses.
func (s *SQLiteStore) Append(ctx context.Context, rec *store.PollRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
		INSERT INTO polls (id, question, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Question, string(rec.Reason), rec.OpenedAt.UTC(), rec.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	// Tally is aligned with Options, so repeated labels keep their own counts.
	for i, opt := range rec.Options {
		votes := 0
		if i < len(rec.Tally) {
			votes = rec.Tally[i].Count
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO poll_options (poll_seq, position, label, votes)
			VALUES (?, ?, ?, ?)
		`, seq, i, opt, votes); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}

	for i, r := range rec.Responses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO poll_responses (poll_seq, position, name, answer)
			VALUES (?, ?, ?, ?)
		`, seq, i, r.Name, r.Answer); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns the retained history, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*store.PollRecord, error) {
	limit := -1 // sqlite: no limit
	if s.limit > 0 {
		limit = s.limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, question, reason, opened_at, closed_at FROM (
			SELECT seq, id, question, reason, opened_at, closed_at
			FROM polls
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer rows.Close()

	records := make([]*store.PollRecord, 0)
	bySeq := make(map[int64]*store.PollRecord)
	var minSeq int64
	for rows.Next() {
		var (
			seq    int64
			reason string
			rec    store.PollRecord
		)
		if err := rows.Scan(&seq, &rec.ID, &rec.Question, &reason, &rec.OpenedAt, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		rec.Reason = store.CloseReason(reason)
		rec.Options = []string{}
		rec.Tally = []store.OptionCount{}
		rec.Responses = []store.Response{}
		if len(records) == 0 {
			minSeq = seq
		}
		records = append(records, &rec)
		bySeq[seq] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	if err := s.loadOptions(ctx, minSeq, bySeq); err != nil {
		return nil, err
	}
	if err := s.loadResponses(ctx, minSeq, bySeq); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) loadOptions(ctx context.Context, minSeq int64, bySeq map[int64]*store.PollRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_seq, label, votes
		FROM poll_options
		WHERE poll_seq >= ?
		ORDER BY poll_seq, position
	`, minSeq)
	if err != nil {
		return fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq   int64
			label string
			votes int
		)
		if err := rows.Scan(&seq, &label, &votes); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		rec, ok := bySeq[seq]
		if !ok {
			continue
		}
		rec.Options = append(rec.Options, label)
		rec.Tally = append(rec.Tally, store.OptionCount{Option: label, Count: votes})
	}
	return rows.Err()
}

func (s *SQLiteStore) loadResponses(ctx context.Context, minSeq int64, bySeq map[int64]*store.PollRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_seq, name, answer
		FROM poll_responses
		WHERE poll_seq >= ?
		ORDER BY poll_seq, position
	`, minSeq)
	if err != nil {
		return fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq int64
			r   store.Response
		)
		if err := rows.Scan(&seq, &r.Name, &r.Answer); err != nil {
			return fmt.Errorf("scan response: %w", err)
		}
		if rec, ok := bySeq[seq]; ok {
			rec.Responses = append(rec.Responses, r)
		}
	}
	return rows.Err()
}
