package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"ai_proposal_agent/generator"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLStore keeps proposal versions in a SQLite database.
type SQLStore struct {
	dbConn *sqlx.DB
	now    func() time.Time
	mu     sync.Mutex
}

var _ Store = (*SQLStore)(nil)

type dbProposal struct {
	ID         string `db:"id"`
	Slug       string `db:"slug"`
	Title      string `db:"title"`
	ClientName string `db:"client_name"`
	Metadata   string `db:"metadata"`
	Sections   string `db:"sections"`
	History    string `db:"history"`
	SavedAt    string `db:"saved_at"`
}

// OpenSQLite connects to the database file at name and applies pending
// migrations.
func OpenSQLite(name string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_journal=WAL&_timeout=5000", name))
	if err != nil {
		return nil, fmt.Errorf("connecting to db : %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations : %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migration : %w", err)
	}
	return &SQLStore{dbConn: db, now: time.Now}, nil
}

func (s *SQLStore) Save(ctx context.Context, meta Metadata, sections map[string]string, history []generator.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if meta.Slug == "" {
		meta.Slug = ProposalSlug(meta.ProjectTitle)
	}
	meta.SavedAt = now
	if history == nil {
		history = []generator.HistoryEntry{}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	sectionsJSON, err := json.Marshal(cloneSections(sections))
	if err != nil {
		return "", fmt.Errorf("encoding sections: %w", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encoding history: %w", err)
	}

	base := NewProposalID(now, meta.Slug)
	id := base
	for n := 2; ; n++ {
		var count int
		if err := s.dbConn.GetContext(ctx, &count, `SELECT COUNT(*) FROM proposal WHERE id = ?`, id); err != nil {
			return "", fmt.Errorf("checking proposal id: %w", err)
		}
		if count == 0 {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	query := `INSERT INTO proposal(id, slug, title, client_name, metadata, sections, history, saved_at) VALUES (?,?,?,?,?,?,?,?)`
	_, err = s.dbConn.ExecContext(ctx, query, id, meta.Slug, meta.Title, meta.ClientName,
		string(metaJSON), string(sectionsJSON), string(historyJSON), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("inserting proposal: %w", err)
	}
	return id, nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (Record, error) {
	var row dbProposal
	err := s.dbConn.GetContext(ctx, &row, `SELECT * FROM proposal WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting proposal %s: %w", id, err)
	}

	rec := Record{ID: row.ID}
	if err := json.Unmarshal([]byte(row.Metadata), &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("decoding metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Sections), &rec.Sections); err != nil {
		return Record{}, fmt.Errorf("decoding sections: %w", err)
	}
	if err := json.Unmarshal([]byte(row.History), &rec.History); err != nil {
		return Record{}, fmt.Errorf("decoding history: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.dbConn.SelectContext(ctx, &ids, `SELECT id FROM proposal ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	sortIDs(ids)
	return ids, nil
}

func (s *SQLStore) Close() error {
	if err := s.dbConn.Close(); err != nil {
		return fmt.Errorf("closing store : %w", err)
	}
	return nil
}
