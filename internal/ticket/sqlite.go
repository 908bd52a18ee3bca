package ticket

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRecordNotFound is returned by GetByChannel and SetStatus for unknown channels.
var ErrRecordNotFound = errors.New("ticket store: record not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			channel_id   TEXT PRIMARY KEY,
			number       INTEGER NOT NULL,
			owner_id     TEXT NOT NULL,
			owner_name   TEXT NOT NULL DEFAULT '',
			topic        TEXT NOT NULL DEFAULT '',
			channel_name TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'open',
			created_at   TEXT NOT NULL,
			closed_at    TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_owner ON tickets(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(rec *Record) error {
	var closedAt *string
	if rec.ClosedAt != nil {
		v := rec.ClosedAt.Format(time.RFC3339)
		closedAt = &v
	}

	_, err := s.db.Exec(`
		INSERT INTO tickets (channel_id, number, owner_id, owner_name, topic, channel_name, status, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			number=excluded.number, owner_id=excluded.owner_id, owner_name=excluded.owner_name,
			topic=excluded.topic, channel_name=excluded.channel_name, status=excluded.status,
			closed_at=excluded.closed_at
	`, rec.ChannelID, rec.Number, rec.OwnerID, rec.OwnerName, rec.Topic, rec.ChannelName,
		string(rec.Status), rec.CreatedAt.Format(time.RFC3339), closedAt)
	if err != nil {
		return fmt.Errorf("ticket store: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetByChannel(channelID string) (*Record, error) {
	row := s.db.QueryRow(`SELECT channel_id, number, owner_id, owner_name, topic, channel_name, status, created_at, closed_at
		FROM tickets WHERE channel_id = ?`, channelID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(filter Filter) ([]*Record, error) {
	query, args := filterQuery(`SELECT channel_id, number, owner_id, owner_name, topic, channel_name, status, created_at, closed_at
		FROM tickets WHERE 1=1`, filter)
	query += " ORDER BY created_at DESC, number DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Count(filter Filter) (int, error) {
	query, args := filterQuery("SELECT COUNT(*) FROM tickets WHERE 1=1", filter)

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ticket store: count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) SetStatus(channelID string, status Status) error {
	var result sql.Result
	var err error
	if status == StatusOpen {
		result, err = s.db.Exec(`UPDATE tickets SET status = ?, closed_at = NULL WHERE channel_id = ?`,
			string(status), channelID)
	} else {
		result, err = s.db.Exec(`UPDATE tickets SET status = ?, closed_at = ? WHERE channel_id = ?`,
			string(status), time.Now().Format(time.RFC3339), channelID)
	}
	if err != nil {
		return fmt.Errorf("ticket store: set status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

func filterQuery(base string, filter Filter) (string, []any) {
	query := base
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.Query != "" {
		query += " AND (topic LIKE ? OR channel_name LIKE ?)"
		pattern := fmt.Sprintf("%%%s%%", filter.Query)
		args = append(args, pattern, pattern)
	}
	return query, args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(s scannable) (*Record, error) {
	var rec Record
	var status, createdAtStr string
	var closedAtStr *string

	err := s.Scan(&rec.ChannelID, &rec.Number, &rec.OwnerID, &rec.OwnerName, &rec.Topic,
		&rec.ChannelName, &status, &createdAtStr, &closedAtStr)
	if err != nil {
		return nil, err
	}

	rec.Status = Status(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	if closedAtStr != nil {
		ct, _ := time.Parse(time.RFC3339, *closedAtStr)
		rec.ClosedAt = &ct
	}
	return &rec, nil
}
