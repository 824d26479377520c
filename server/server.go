package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai_proposal_agent/generator"
	"ai_proposal_agent/publisher"
	"ai_proposal_agent/storage"
)

// DefaultTimeout bounds one request's completion work.
const DefaultTimeout = 5 * time.Minute

var errSessionNotFound = errors.New("session not found")

// Options configures a Server. Store and Publisher are required.
type Options struct {
	Store     storage.Store
	Publisher *publisher.Publisher
	ExportDir string
	Timeout   time.Duration
	Verbose   bool
	Logger    *log.Logger
}

type Server struct {
	genAgent  *generator.Agent
	store     storage.Store
	pub       *publisher.Publisher
	exportDir string
	timeout   time.Duration
	sessions  *sessionStore
	verbose   bool
	logger    *log.Logger
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*generator.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*generator.Session)}
}

func (s *sessionStore) set(id string, sess *generator.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*generator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func New(genAgent *generator.Agent, opts Options) (*Server, error) {
	if genAgent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Store == nil {
		return nil, errors.New("proposal store required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("publisher required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{
		genAgent:  genAgent,
		store:     opts.Store,
		pub:       opts.Publisher,
		exportDir: opts.ExportDir,
		timeout:   opts.Timeout,
		sessions:  newSessionStore(),
		verbose:   opts.Verbose,
		logger:    opts.Logger,
	}, nil
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] "+format, args...)
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/meta", s.handleMeta)
	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleSessionGet))
	mux.HandleFunc("POST /api/sessions/{id}/regenerate", s.withSession(s.handleRegenerate))
	mux.HandleFunc("PUT /api/sessions/{id}/sections", s.withSession(s.handleEdit))
	mux.HandleFunc("POST /api/sessions/{id}/undo", s.withSession(s.handleUndo))
	mux.HandleFunc("POST /api/sessions/{id}/audit", s.withSession(s.handleAudit))
	mux.HandleFunc("POST /api/sessions/{id}/email", s.withSession(s.handleEmail))
	mux.HandleFunc("POST /api/sessions/{id}/save", s.withSession(s.handleSave))
	mux.HandleFunc("GET /api/sessions/{id}/preview", s.withSession(s.handlePreview))
	mux.HandleFunc("GET /api/sessions/{id}/export/{format}", s.withSession(s.handleExport))
	mux.HandleFunc("GET /api/proposals", s.handleProposalList)
	mux.HandleFunc("POST /api/proposals/{pid}/open", s.handleProposalOpen)
	return logMiddleware(s.logger, compressMiddleware(mux))
}

// --- Handlers ---

type sessionCreateReq struct {
	Inputs      generator.Inputs       `json:"inputs"`
	Transcript  string                 `json:"transcript"`
	Attachments []generator.Attachment `json:"attachments"`
}

type regenerateReq struct {
	Section string `json:"section"`
}

type editReq struct {
	Section string `json:"section"`
	Body    string `json:"body"`
}

type saveReq struct {
	Formats []string `json:"formats"`
}

type saveResp struct {
	ProposalID string            `json:"proposal_id"`
	Exports    map[string]string `json:"exports,omitempty"`
}

type metaResp struct {
	Sections []string           `json:"sections"`
	Tones    []string           `json:"tones"`
	Formats  []publisher.Format `json:"formats"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *generator.Session)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		sess, ok := s.sessions.get(id)
		if !ok {
			writeError(w, fmt.Errorf("%w: %s", errSessionNotFound, id))
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metaResp{
		Sections: generator.SectionNames(),
		Tones:    generator.BrandTones,
		Formats:  publisher.Formats,
	})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := generator.ValidateInputs(req.Inputs); err != nil {
		writeError(w, err)
		return
	}
	id, err := newSessionID()
	if err != nil {
		writeError(w, err)
		return
	}
	sess := generator.NewSession(id, req.Inputs, s.genAgent)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := sess.Generate(ctx, req.Transcript, req.Attachments); err != nil {
		writeError(w, err)
		return
	}
	s.sessions.set(id, sess)
	s.infof("session %s generated for %q", id, req.Inputs.ProjectTitle)
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	var req regenerateReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := sess.Regenerate(ctx, req.Section); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	var req editReq
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := sess.Edit(req.Section, req.Body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	if _, err := sess.Undo(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, sess.Audit(ctx))
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	writeJSON(w, http.StatusOK, sess.CreateEmail(ctx))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	var req saveReq
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	formats := make([]publisher.Format, 0, len(req.Formats))
	for _, name := range req.Formats {
		f, err := publisher.ParseFormat(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		formats = append(formats, f)
	}

	id, err := storage.SaveSession(r.Context(), s.store, sess)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := saveResp{ProposalID: id}
	if len(formats) > 0 {
		view := sess.View()
		resp.Exports, err = s.pub.Publish(s.exportDir, id, view.Document, publisher.CoverFor(view.Document, view.Inputs), formats)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	s.infof("session %s saved as %s", sess.ID, id)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	page, err := s.pub.Preview(sess.View().Document)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *generator.Session) {
	f, err := publisher.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	view := sess.View()
	out, err := s.pub.Render(view.Document, publisher.CoverFor(view.Document, view.Inputs), f)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Name))
	_, _ = w.Write(out.Data)
}

func (s *Server) handleProposalList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"proposals": ids})
}

func (s *Server) handleProposalOpen(w http.ResponseWriter, r *http.Request) {
	id, err := newSessionID()
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := storage.OpenSession(r.Context(), s.store, r.PathValue("pid"), id, s.genAgent)
	if err != nil {
		writeError(w, err)
		return
	}
	s.sessions.set(id, sess)
	writeJSON(w, http.StatusCreated, sess.View())
}

// --- Helpers ---

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return id.String(), nil
}

type errorResp struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *generator.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, generator.ErrUnknownSection):
		return http.StatusBadRequest
	case errors.Is(err, errSessionNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, generator.ErrCompletionFailed), errors.Is(err, generator.ErrUnrecoverableJSON):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResp{Error: err.Error()}
	var verr *generator.ValidationError
	if errors.As(err, &verr) {
		resp.Problems = verr.Problems
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
