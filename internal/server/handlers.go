package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/askdb/internal/agent"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/filestore"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/session"
)

type startRequest struct {
	Dialect string `json:"dialect"`
	DSN     string `json:"dsn"`
	Model   string `json:"model,omitempty"`
}

type startResponse struct {
	ID      string `json:"id"`
	Dialect string `json:"dialect"`
}

type askRequest struct {
	Question string `json:"question"`
}

type messagesResponse struct {
	Messages []agent.Turn `json:"messages"`
}

type schemaTable struct {
	Name           string   `json:"name"`
	Columns        []string `json:"columns"`
	ColumnsOmitted int      `json:"columns_omitted,omitempty"`
}

type schemaResponse struct {
	Dialect     string        `json:"dialect"`
	Tables      []schemaTable `json:"tables"`
	TotalTables int           `json:"total_tables"`
	Truncated   bool          `json:"truncated"`
	Text        string        `json:"text"`
}

type archivesResponse struct {
	Archives []filestore.ObjectInfo `json:"archives"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if s.opts.Sessions != nil {
		sessions = s.opts.Sessions.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": sessions})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err))
		return
	}

	dbCfg, err := s.opts.Config.Database(req.Dialect, req.DSN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	client, err := s.opts.LLM(strings.TrimSpace(req.Model))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	deps := session.Deps{LLM: client, Logger: s.log}
	if s.opts.Archive != nil {
		deps.Archive = s.opts.Archive
	}
	sess, err := s.opts.Sessions.Start(r.Context(), s.opts.Config.Session(dbCfg), deps)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{ID: sess.ID(), Dialect: sess.Dialect().String()})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err))
		return
	}

	ans, err := sess.Ask(r.Context(), req.Question)
	if ans != nil {
		// Degraded answers, a lost connection included, are still answers.
		writeJSON(w, http.StatusOK, ans)
		return
	}
	if r.Context().Err() != nil {
		// Client went away.
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	switch err := sess.Reset(r.Context()); {
	case err == nil:
	case errs.IsInvalidInput(err):
		s.writeError(w, r, err)
		return
	default:
		// The conversation was cleared; only the archive copy is missing.
		s.log.WarnWith("reset: archive failed", err, map[string]interface{}{"session": sess.ID()})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: sess.Transcript()})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	desc, err := sess.Schema(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := schemaResponse{
		Dialect:     desc.Dialect.String(),
		Tables:      make([]schemaTable, 0, len(desc.Tables)),
		TotalTables: desc.TotalTables,
		Truncated:   desc.Truncated,
		Text:        desc.Render(),
	}
	for _, t := range desc.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + c.Type
		}
		resp.Tables = append(resp.Tables, schemaTable{Name: t.Name, Columns: cols, ColumnsOmitted: t.ColumnsOmitted})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := s.opts.Sessions.Delete(r.Context(), id); {
	case err == nil:
	case errs.IsNotFound(err):
		s.writeError(w, r, err)
		return
	default:
		s.log.WarnWith("delete: archive failed", err, map[string]interface{}{"session": id})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		s.writeError(w, r, errs.New(errs.ErrKindNotFound, "transcript archiving is not configured"))
		return
	}
	list, err := s.opts.Archive.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []filestore.ObjectInfo{}
	}
	writeJSON(w, http.StatusOK, archivesResponse{Archives: list})
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		s.writeError(w, r, errs.New(errs.ErrKindNotFound, "transcript archiving is not configured"))
		return
	}
	key := chi.URLParam(r, "id") + "/" + chi.URLParam(r, "name")
	doc, err := s.opts.Archive.Load(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.opts.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]interface{}{"status": status})
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindBusy:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindConnectionFailed, errs.ErrKindModelFailed:
		return http.StatusBadGateway
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
