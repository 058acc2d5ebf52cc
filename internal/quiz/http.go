package quiz

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/gokatarajesh/shakai-quiz/internal/export"
	"github.com/gokatarajesh/shakai-quiz/internal/question"
	httperrors "github.com/gokatarajesh/shakai-quiz/pkg/http/errors"
)

const (
	sessionIDKey   = "sid"
	maxJSONBody    = 64 << 10
	defaultUpload  = 2 << 20
	uploadFileForm = "file"
)

// NewCookieStore returns the signed cookie store that carries session ids.
// secure should only be set when the site is served over TLS; browsers and
// cookie jars drop Secure cookies on plain http.
func NewCookieStore(secret []byte, ttl time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// HTTPOptions configures the session endpoints.
type HTTPOptions struct {
	CookieName     string
	MaxUploadBytes int64
}

// HTTPHandlers provides REST endpoints for quiz sessions. The session id
// travels in a signed cookie.
type HTTPHandlers struct {
	service    *Service
	cookies    sessions.Store
	cookieName string
	maxUpload  int64
	logger     zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(service *Service, cookies sessions.Store, opts HTTPOptions, logger zerolog.Logger) *HTTPHandlers {
	if opts.CookieName == "" {
		opts.CookieName = "shakai-quiz"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultUpload
	}
	return &HTTPHandlers{
		service:    service,
		cookies:    cookies,
		cookieName: opts.CookieName,
		maxUpload:  opts.MaxUploadBytes,
		logger:     logger.With().Str("component", "quiz_http").Logger(),
	}
}

// DatasetsResponse lists what a menu can offer.
type DatasetsResponse struct {
	Datasets     []question.Dataset `json:"datasets"`
	PresetCounts []int              `json:"preset_counts"`
}

// ListDatasets handles GET /v1/datasets
func (h *HTTPHandlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, DatasetsResponse{
		Datasets:     h.service.Datasets(),
		PresetCounts: h.service.PresetCounts(),
	})
}

// SelectDataset handles POST /v1/session/dataset
func (h *HTTPHandlers) SelectDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dataset string `json:"dataset"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Dataset == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "dataset is required", "dataset")
		return
	}
	h.act(w, r, func(id string) (View, error) {
		return h.service.SelectDataset(r.Context(), id, req.Dataset)
	})
}

// Upload handles POST /v1/session/upload (multipart "file", optional "field")
func (h *HTTPHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.RespondError(w, http.StatusRequestEntityTooLarge, httperrors.ErrCodePayloadTooLarge, "Uploaded file is too large")
			return
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid multipart payload")
		return
	}

	file, header, err := r.FormFile(uploadFileForm)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "file is required", uploadFileForm)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload.csv"
	}
	field := r.FormValue("field")

	h.act(w, r, func(id string) (View, error) {
		return h.service.Upload(r.Context(), id, file, name, field)
	})
}

// SetName handles POST /v1/session/name
func (h *HTTPHandlers) SetName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) (View, error) {
		return h.service.SetName(r.Context(), id, req.Name)
	})
}

// Start handles POST /v1/session/start
func (h *HTTPHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) (View, error) {
		return h.service.Start(r.Context(), id, req)
	})
}

// Get handles GET /v1/session
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(id string) (View, error) {
		return h.service.Render(r.Context(), id)
	})
}

// Answer handles POST /v1/session/answer
func (h *HTTPHandlers) Answer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string `json:"choice"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) (View, error) {
		return h.service.Answer(r.Context(), id, req.Choice)
	})
}

// Next handles POST /v1/session/next
func (h *HTTPHandlers) Next(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(id string) (View, error) {
		return h.service.Next(r.Context(), id)
	})
}

// PlayAgain handles POST /v1/session/again
func (h *HTTPHandlers) PlayAgain(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(id string) (View, error) {
		return h.service.PlayAgain(r.Context(), id)
	})
}

// Finish handles POST /v1/session/finish
func (h *HTTPHandlers) Finish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) (View, error) {
		return h.service.Finish(r.Context(), id, req.Name)
	})
}

// Export handles GET /v1/session/export
func (h *HTTPHandlers) Export(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err, View{})
		return
	}
	name, data, err := h.service.Export(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, View{})
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", export.ContentDisposition(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// sessionID returns the id stored in the session cookie, issuing a new one
// when the request has none.
func (h *HTTPHandlers) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := h.cookies.Get(r, h.cookieName)
	if err != nil {
		// undecodable cookie (e.g. rotated secret); start over
		hlog.FromRequest(r).Debug().Err(err).Msg("discarding session cookie")
	}
	if id, ok := sess.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := h.service.NewSessionID()
	sess.Values[sessionIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

func (h *HTTPHandlers) act(w http.ResponseWriter, r *http.Request, fn func(id string) (View, error)) {
	id, err := h.sessionID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err, View{})
		return
	}
	v, err := fn(id)
	if err != nil {
		h.respondServiceError(w, r, err, v)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

func (h *HTTPHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error, v View) {
	status, code := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("session action failed")
		httperrors.RespondInternalError(w, "Internal error")
		return
	}

	details := map[string]interface{}{}
	var loadErr *question.LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Row > 0 {
			details["row"] = loadErr.Row
		}
		if loadErr.Column != "" {
			details["column"] = loadErr.Column
		}
	}
	if v.SessionID != "" {
		details["view"] = v
	}
	if len(details) == 0 {
		details = nil
	}
	httperrors.RespondErrorWithDetails(w, status, code, err.Error(), details)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("encode response")
	}
}
