package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_proposal_agent/generator"
	"ai_proposal_agent/publisher"
	"ai_proposal_agent/storage"
)

func setupTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	completer, err := generator.NewCompleter(generator.MockLLM{}, 1, 0, nil, logger)
	require.NoError(t, err)
	agent, err := generator.NewAgent(completer, nil, false, logger)
	require.NoError(t, err)

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	pub, err := publisher.New("", false, logger)
	require.NoError(t, err)

	exportDir := t.TempDir()
	srv, err := New(agent, Options{Store: store, Publisher: pub, ExportDir: exportDir, Logger: logger})
	require.NoError(t, err)
	return srv.Routes(), exportDir
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func validRequest() sessionCreateReq {
	return sessionCreateReq{
		Inputs: generator.Inputs{
			CompanyName:  "Acme",
			ClientName:   "Globex",
			ProjectTitle: "Website Revamp",
			Goals:        "Modernize the marketing site",
			Budget:       "$50k",
			Timeline:     "3 months",
			BrandTone:    "Professional",
		},
		Transcript:  "Client: our reports take days.\r\nClient: launch before Q3.",
		Attachments: []generator.Attachment{{Name: "brief.pdf", Size: 2048}},
	}
}

func createSession(t *testing.T, h http.Handler) generator.SessionView {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[generator.SessionView](t, rec)
}

func TestCreateSession(t *testing.T) {
	h, _ := setupTestServer(t)

	view := createSession(t, h)
	assert.NotEmpty(t, view.ID)
	assert.Len(t, view.Document.Sections, len(generator.SectionNames()))
	assert.Contains(t, view.Markdown, "# Executive Summary")
	assert.Equal(t, []string{"Manual reporting takes days"}, view.Insights.PainPoints)
	require.Len(t, view.History, 1)
	assert.Equal(t, generator.HistoryGenerate, view.History[0].Kind)

	rec := do(t, h, http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.ID, decode[generator.SessionView](t, rec).ID)
}

func TestCreateSessionValidation(t *testing.T) {
	h, _ := setupTestServer(t)

	req := validRequest()
	req.Inputs.ClientName = ""
	req.Inputs.Timeline = "2w"
	rec := do(t, h, http.MethodPost, "/api/sessions", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorResp](t, rec)
	assert.Contains(t, resp.Problems, "Missing required field: client_name")
	assert.Contains(t, resp.Problems, "Timeline appears too short.")

	rec = do(t, h, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	h, _ := setupTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerateEditUndo(t *testing.T) {
	h, _ := setupTestServer(t)
	view := createSession(t, h)
	base := "/api/sessions/" + view.ID

	rec := do(t, h, http.MethodPost, base+"/regenerate", regenerateReq{Section: "pricing & payment terms"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	after := decode[generator.SessionView](t, rec)
	assert.Contains(t, after.Document.Sections[generator.SectionPricing], "Generated content")
	require.Len(t, after.History, 2)
	assert.Equal(t, generator.HistoryRegenerate, after.History[1].Kind)
	assert.NotEmpty(t, after.History[1].Diff)

	rec = do(t, h, http.MethodPost, base+"/regenerate", regenerateReq{Section: "Budget Overview"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, base+"/sections", editReq{Section: generator.SectionAppendix, Body: "Case studies on request."})
	require.Equal(t, http.StatusOK, rec.Code)
	edited := decode[generator.SessionView](t, rec)
	assert.Equal(t, "Case studies on request.", edited.Document.Sections[generator.SectionAppendix])

	rec = do(t, h, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	undone := decode[generator.SessionView](t, rec)
	assert.Equal(t, view.Document.Sections[generator.SectionAppendix], undone.Document.Sections[generator.SectionAppendix])

	rec = do(t, h, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	undone = decode[generator.SessionView](t, rec)
	assert.Equal(t, view.Document.Sections[generator.SectionPricing], undone.Document.Sections[generator.SectionPricing])

	rec = do(t, h, http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[generator.SessionView](t, rec).Document.Sections)

	rec = do(t, h, http.MethodPost, base+"/undo", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuditAndEmail(t *testing.T) {
	h, _ := setupTestServer(t)
	view := createSession(t, h)
	base := "/api/sessions/" + view.ID

	rec := do(t, h, http.MethodPost, base+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[generator.QualityAudit](t, rec)
	assert.Equal(t, 82, audit.Grade)
	assert.Equal(t, []string{"Quantify the ROI claims."}, audit.Suggestions)

	rec = do(t, h, http.MethodPost, base+"/email", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	email := decode[generator.Email](t, rec)
	assert.Equal(t, "Your proposal is ready for review", email.Subject)
}

func TestPreviewAndExport(t *testing.T) {
	h, _ := setupTestServer(t)
	view := createSession(t, h)
	base := "/api/sessions/" + view.ID

	rec := do(t, h, http.MethodGet, base+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "doc-page")

	rec = do(t, h, http.MethodGet, base+"/export/docx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, publisher.FormatDOCX.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".docx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = do(t, h, http.MethodGet, base+"/export/odt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveListOpen(t *testing.T) {
	h, _ := setupTestServer(t)
	view := createSession(t, h)

	rec := do(t, h, http.MethodPost, "/api/sessions/"+view.ID+"/save", saveReq{Formats: []string{"md", "html"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[saveResp](t, rec)
	assert.Contains(t, saved.ProposalID, "_website-revamp")
	require.Len(t, saved.Exports, 2)
	for _, path := range saved.Exports {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}

	rec = do(t, h, http.MethodGet, "/api/proposals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{saved.ProposalID}, decode[map[string][]string](t, rec)["proposals"])

	rec = do(t, h, http.MethodPost, "/api/proposals/"+saved.ProposalID+"/open", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	opened := decode[generator.SessionView](t, rec)
	assert.NotEqual(t, view.ID, opened.ID)
	assert.Equal(t, saved.ProposalID, opened.ProposalID)
	assert.Equal(t, view.Document.Sections, opened.Document.Sections)

	rec = do(t, h, http.MethodPost, "/api/proposals/20200101-000000_missing/open", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBrotliResponses(t *testing.T) {
	h, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/meta", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))

	plain, err := io.ReadAll(brotli.NewReader(rec.Body))
	require.NoError(t, err)
	var meta metaResp
	require.NoError(t, json.Unmarshal(plain, &meta))
	assert.Equal(t, generator.SectionNames(), meta.Sections)
	assert.Contains(t, meta.Tones, "Warm")
}

func TestAcceptsBrotli(t *testing.T) {
	assert.True(t, acceptsBrotli("gzip, deflate, br"))
	assert.True(t, acceptsBrotli("br;q=0.8"))
	assert.False(t, acceptsBrotli("br;q=0"))
	assert.False(t, acceptsBrotli("gzip"))
}
