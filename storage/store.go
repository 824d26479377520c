package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"ai_proposal_agent/generator"
)

// ErrNotFound is returned when no proposal has the requested id.
var ErrNotFound = errors.New("proposal not found")

// idTimeLayout prefixes every proposal id.
const idTimeLayout = "20060102-150405"

var validID = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

// Metadata is everything about a proposal besides its sections.
type Metadata struct {
	generator.Inputs
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Transcript string    `json:"transcript,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// Record is a stored proposal.
type Record struct {
	ID       string                   `json:"id"`
	Metadata Metadata                 `json:"metadata"`
	Sections map[string]string        `json:"sections"`
	History  []generator.HistoryEntry `json:"history"`
}

// Store persists proposal snapshots. Every Save creates a new version with
// its own id.
type Store interface {
	Save(ctx context.Context, meta Metadata, sections map[string]string, history []generator.HistoryEntry) (string, error)
	Load(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// ProposalSlug derives the id slug from the project title.
func ProposalSlug(title string) string {
	s := slug.Make(title)
	if s == "" {
		return "proposal"
	}
	return s
}

// NewProposalID builds "<yyyymmdd-hhmmss>_<slug>".
func NewProposalID(now time.Time, s string) string {
	if s == "" {
		s = "proposal"
	}
	return now.Format(idTimeLayout) + "_" + s
}

// ValidID reports whether id is safe to use as a file or directory name.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// SaveExports writes rendered files under dir/<id>/ and returns the path of
// each file by name.
func SaveExports(dir, id string, files map[string][]byte) (map[string]string, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	outDir := filepath.Join(dir, id)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	saved := make(map[string]string, len(files))
	for name, content := range files {
		path := filepath.Join(outDir, filepath.Base(name))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return nil, err
		}
		saved[name] = path
	}
	return saved, nil
}

// idOrder splits an id into its base and save counter. The "-N" suffix that
// same-second saves get counts from 2; an id without one is 1.
func idOrder(id string) (string, int) {
	if i := strings.LastIndexByte(id, '-'); i > len(idTimeLayout) {
		if n, err := strconv.Atoi(id[i+1:]); err == nil && n >= 2 {
			return id[:i], n
		}
	}
	return id, 1
}

// sortIDs orders ids by timestamp and slug, then same-second versions by
// save counter, so "-10" follows "-9".
func sortIDs(ids []string) {
	slices.SortStableFunc(ids, func(a, b string) int {
		aBase, aN := idOrder(a)
		bBase, bN := idOrder(b)
		if c := strings.Compare(aBase, bBase); c != 0 {
			return c
		}
		return cmp.Compare(aN, bN)
	})
}

func cloneSections(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Open returns the store for driver: "file" keeps JSON documents in dir,
// "sqlite" uses the database at dsn.
func Open(driver, dir, dsn string) (Store, error) {
	switch driver {
	case "", "file":
		fs, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		db, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage driver %q not supported", driver)
	}
}

// SaveSession stores the current state of a session as a new version.
func SaveSession(ctx context.Context, st Store, sess *generator.Session) (string, error) {
	view := sess.View()
	meta := Metadata{
		Inputs:     view.Inputs,
		Slug:       ProposalSlug(view.Inputs.ProjectTitle),
		Title:      view.Document.Title,
		Transcript: sess.SavedTranscript(),
	}
	id, err := st.Save(ctx, meta, view.Document.Sections, view.History)
	if err != nil {
		return "", err
	}
	sess.MarkSaved(id)
	return id, nil
}

// OpenSession loads a stored version into a new session.
func OpenSession(ctx context.Context, st Store, proposalID, sessionID string, agent *generator.Agent) (*generator.Session, error) {
	rec, err := st.Load(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return generator.RestoreSession(sessionID, rec.Metadata.Inputs, rec.Metadata.Title, rec.Sections, rec.History, rec.ID, agent), nil
}
