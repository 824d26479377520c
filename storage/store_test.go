package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_proposal_agent/generator"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC)

func setupTestStore(t *testing.T, driver string) (Store, func()) {
	t.Helper()
	dir := t.TempDir()

	switch driver {
	case "file":
		fs, err := NewFileStore(filepath.Join(dir, "proposals"))
		require.NoError(t, err)
		fs.now = func() time.Time { return fixedNow }
		return fs, func() { fs.Close() }
	case "sqlite":
		db, err := OpenSQLite(filepath.Join(dir, "test.db"))
		require.NoError(t, err)
		db.now = func() time.Time { return fixedNow }
		return db, func() { db.Close() }
	}
	t.Fatalf("unknown driver %s", driver)
	return nil, nil
}

func testMetadata() Metadata {
	return Metadata{
		Inputs: generator.Inputs{
			CompanyName:  "Acme",
			ClientName:   "Globex",
			ProjectTitle: "Website Revamp",
			Budget:       "$50k",
			Timeline:     "3 months",
			BrandTone:    "Professional",
		},
		Title: "Website Revamp",
	}
}

func TestStore_SaveLoadList(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			store, teardown := setupTestStore(t, driver)
			defer teardown()
			ctx := context.Background()

			sections := map[string]string{
				generator.SectionExecSummary: "We help Globex.",
				generator.SectionPricing:     "Fixed fee.",
			}
			history := []generator.HistoryEntry{{Kind: generator.HistoryGenerate, CreatedAt: fixedNow}}

			id, err := store.Save(ctx, testMetadata(), sections, history)
			require.NoError(t, err)
			assert.Equal(t, "20240517-093015_website-revamp", id)

			rec, err := store.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, rec.ID)
			assert.Equal(t, sections, rec.Sections)
			assert.Equal(t, "Globex", rec.Metadata.ClientName)
			assert.Equal(t, "website-revamp", rec.Metadata.Slug)
			assert.True(t, rec.Metadata.SavedAt.Equal(fixedNow))
			require.Len(t, rec.History, 1)
			assert.Equal(t, generator.HistoryGenerate, rec.History[0].Kind)

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{id}, ids)
		})
	}
}

func TestStore_SaveSameSecondKeepsVersions(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			store, teardown := setupTestStore(t, driver)
			defer teardown()
			ctx := context.Background()

			first, err := store.Save(ctx, testMetadata(), map[string]string{"Appendix": "v1"}, nil)
			require.NoError(t, err)
			second, err := store.Save(ctx, testMetadata(), map[string]string{"Appendix": "v2"}, nil)
			require.NoError(t, err)

			assert.NotEqual(t, first, second)
			assert.Equal(t, first+"-2", second)

			rec, err := store.Load(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, "v1", rec.Sections["Appendix"])
			assert.NotNil(t, rec.History)

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, ids, 2)
		})
	}
}

func TestStore_ListKeepsSaveOrderPastNineVersions(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			store, teardown := setupTestStore(t, driver)
			defer teardown()
			ctx := context.Background()

			var saved []string
			for i := 0; i < 11; i++ {
				id, err := store.Save(ctx, testMetadata(), map[string]string{"Appendix": "v"}, nil)
				require.NoError(t, err)
				saved = append(saved, id)
			}
			assert.Equal(t, "20240517-093015_website-revamp-11", saved[10])

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved, ids)
		})
	}
}

func TestSortIDs(t *testing.T) {
	ids := []string{
		"20240517-093015_acme-10",
		"20240518-080000_acme",
		"20240517-093015_acme-2",
		"20240517-093015_acme",
		"20240517-093015_acme-9",
	}
	sortIDs(ids)
	assert.Equal(t, []string{
		"20240517-093015_acme",
		"20240517-093015_acme-2",
		"20240517-093015_acme-9",
		"20240517-093015_acme-10",
		"20240518-080000_acme",
	}, ids)
}

func TestStore_LoadMissing(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			store, teardown := setupTestStore(t, driver)
			defer teardown()

			_, err := store.Load(context.Background(), "20240101-000000_missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store, teardown := setupTestStore(t, "file")
	defer teardown()

	_, err := store.Load(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProposalSlug(t *testing.T) {
	assert.Equal(t, "website-revamp", ProposalSlug("Website Revamp!"))
	assert.Equal(t, "proposal", ProposalSlug("   "))
	assert.Equal(t, "20240517-093015_proposal", NewProposalID(fixedNow, ""))
}

func TestSaveExports(t *testing.T) {
	dir := t.TempDir()
	paths, err := SaveExports(dir, "20240517-093015_website-revamp", map[string][]byte{
		"proposal.md":   []byte("# Title"),
		"proposal.html": []byte("<html></html>"),
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(paths["proposal.md"])
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))
	assert.Equal(t, filepath.Join(dir, "20240517-093015_website-revamp", "proposal.html"), paths["proposal.html"])

	_, err = SaveExports(dir, "../escape", nil)
	assert.Error(t, err)
}
