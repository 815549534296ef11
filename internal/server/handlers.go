package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/export"
	"github.com/koustreak/relarchive/internal/schema"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.renderError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	table := schema.TableID{Schema: chi.URLParam(r, "schema"), Name: chi.URLParam(r, "table")}
	q := r.URL.Query()

	column := q.Get("column")
	if column == "" || !q.Has("value") {
		s.renderError(w, http.StatusBadRequest, errs.New(errs.ErrKindInvalidInput, "column and value query parameters are required"))
		return
	}

	format := export.FormatJSON
	if f := q.Get("format"); f != "" {
		var err error
		if format, err = export.ParseFormat(f); err != nil {
			s.renderError(w, http.StatusBadRequest, err)
			return
		}
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	rows, err := s.archiver.ArchiveBy(ctx, table, column, q.Get("value"))
	if err != nil {
		s.renderError(w, statusOf(err), err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if err := export.Encode(w, format, rows); err != nil {
		s.log.ErrorWith("encode response", err, map[string]interface{}{"table": table.String()})
	}
}

// statusOf maps an error kind to the response status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindMapping, errs.ErrKindUnsupportedType, errs.ErrKindDepthExceeded:
		return http.StatusUnprocessableEntity
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.ErrorWith("request failed", err, map[string]interface{}{"status": status})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Error:   errs.KindOf(err).String(),
		Message: err.Error(),
	})
}
