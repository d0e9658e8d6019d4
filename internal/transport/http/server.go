package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"overlaybackend/internal/monologue"
	"overlaybackend/internal/news"
	"overlaybackend/internal/overlay"
	"overlaybackend/internal/settings"
	"overlaybackend/internal/stream"
)

const maxStreamLimit = 50

var errBadRequest = errors.New("bad request")

type Server struct {
	engine         *stream.Engine
	writer         monologue.Writer
	logger         *slog.Logger
	requestTimeout time.Duration
	now            func() time.Time
}

func NewServer(engine *stream.Engine, writer monologue.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if writer == nil {
		writer = monologue.TemplateWriter{}
	}
	return &Server{
		engine:         engine,
		writer:         writer,
		logger:         logger,
		requestTimeout: 10 * time.Second,
		now:            time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.health)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/overlay", s.handleOverlay)
	mux.HandleFunc("/monologue", s.handleMonologue)
	mux.Handle("/metrics", promhttp.Handler())
	if docs, err := newAPIDocs(); err != nil {
		s.logger.Error("api docs unavailable", "error", err)
	} else {
		docs.register(mux)
	}
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getStream(w, r)
	case http.MethodPost:
		s.postStream(w, r)
	case http.MethodDelete:
		if err := s.engine.Reset(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeMessage(w, "Stream cache and custom headlines cleared")
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) getStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseStreamRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.engine.Stream(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"timestamp":    res.Timestamp,
		"count":        len(res.Headlines),
		"custom_count": res.CustomCount,
		"api_count":    res.APICount,
		"mode":         res.Mode,
		"filter":       res.Filter,
		"cached":       res.Cached,
		"headlines":    res.Headlines,
		"meta": map[string]any{
			"refreshRate":              res.Settings.RefreshRate,
			"nextUpdate":               res.NextUpdate(),
			"contentMode":              res.Mode,
			"customHeadlinesAvailable": res.CustomAvailable,
			"degraded":                 res.ProviderErr != nil,
		},
	})
}

type streamAction struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (s *Server) postStream(w http.ResponseWriter, r *http.Request) {
	var body streamAction
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	switch body.Action {
	case "add_custom_headline":
		var input news.HeadlineInput
		if err := decodeRaw(body.Data, &input); err != nil {
			s.writeError(w, err)
			return
		}
		headline, err := s.engine.AddHeadline(ctx, input)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "Custom headline added",
			"headline":  headline,
			"timestamp": s.now().UTC(),
		})

	case "remove_custom_headline":
		var data struct {
			ID string `json:"id"`
		}
		if err := decodeRaw(body.Data, &data); err != nil {
			s.writeError(w, err)
			return
		}
		if strings.TrimSpace(data.ID) == "" {
			s.writeError(w, fmt.Errorf("%w: id is required", errBadRequest))
			return
		}
		if err := s.engine.RemoveHeadline(ctx, data.ID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeMessage(w, "Custom headline removed")

	case "update_settings":
		var partial map[string]json.RawMessage
		if err := decodeRaw(body.Data, &partial); err != nil {
			s.writeError(w, err)
			return
		}
		if partial == nil {
			partial = map[string]json.RawMessage{}
		}
		if err := s.engine.UpdateSettings(ctx, settings.Patch{Overlay: partial}); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeMessage(w, "Settings updated")

	case "clear_custom_headlines":
		if err := s.engine.ClearHeadlines(ctx); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeMessage(w, "Custom headlines cleared")

	default:
		s.writeError(w, fmt.Errorf("%w: unknown action %q", errBadRequest, body.Action))
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		scope, err := settings.ParseScope(r.URL.Query().Get("type"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSettings(w, scope)

	case http.MethodPost:
		var patch settings.Patch
		if err := decodeBody(w, r, &patch); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.engine.UpdateSettings(r.Context(), patch); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSettings(w, settings.ScopeAll)

	case http.MethodPut:
		var body struct {
			Type  string          `json:"type"`
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			s.writeError(w, err)
			return
		}
		if body.Type == "" {
			body.Type = string(settings.ScopeOverlay)
		}
		scope, err := settings.ParseScope(body.Type)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.engine.UpdateSettingsField(r.Context(), scope, body.Key, body.Value); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSettings(w, scope)

	case http.MethodDelete:
		scope, err := settings.ParseScope(r.URL.Query().Get("type"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.engine.ResetSettings(r.Context(), scope); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeSettings(w, scope)

	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) writeSettings(w http.ResponseWriter, scope settings.Scope) {
	snap := s.engine.Settings().Snapshot()
	payload := map[string]any{
		"success":   true,
		"timestamp": s.now().UTC(),
	}
	if scope == settings.ScopeOverlay || scope == settings.ScopeAll {
		payload["settings"] = snap.Overlay
	}
	if scope == settings.ScopeMonologue || scope == settings.ScopeAll {
		payload["monologue_settings"] = snap.Monologue
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "json" {
		s.writeError(w, fmt.Errorf("%w: unknown format %q", errBadRequest, format))
		return
	}

	req, err := parseStreamRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.engine.Stream(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rendered := overlay.Render(res.Headlines, res.Settings, res.Timestamp)

	if format == "json" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"timestamp": res.Timestamp,
			"cached":    res.Cached,
			"overlay":   rendered,
		})
		return
	}

	page, err := overlay.RenderHTML(rendered)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) handleMonologue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	req, err := parseStreamRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Mode == "" {
		req.Mode = news.ModeAIMonologue
	}

	ctx, cancel := context.WithTimeout(r.Context(), 4*s.requestTimeout)
	defer cancel()

	res, err := s.engine.Stream(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	script, err := s.writer.Write(ctx, res.Headlines, s.engine.Settings().Monologue())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"timestamp":  s.now().UTC(),
		"mode":       res.Mode,
		"script":     script.Text,
		"word_count": script.WordCount,
		"generator":  script.Generator,
		"headlines":  res.Headlines,
	})
}

func parseStreamRequest(r *http.Request) (stream.Request, error) {
	values := r.URL.Query()
	var req stream.Request

	if v := values.Get("mode"); v != "" {
		mode, err := news.ParseMode(v)
		if err != nil {
			return stream.Request{}, err
		}
		req.Mode = mode
	}
	if v := values.Get("filter"); v != "" {
		filter, err := news.ParseFilter(v)
		if err != nil {
			return stream.Request{}, err
		}
		req.Filter = filter
	}
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxStreamLimit {
			return stream.Request{}, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxStreamLimit)
		}
		req.Limit = limit
	}
	req.Query = strings.TrimSpace(values.Get("q"))
	return req, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", errBadRequest, err)
	}
	return nil
}

func decodeRaw(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: data is required", errBadRequest)
	}
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid data: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	var verr *settings.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, errBadRequest),
		errors.Is(err, news.ErrInvalidMode),
		errors.Is(err, news.ErrInvalidFilter),
		errors.Is(err, news.ErrInvalidHeadline),
		errors.Is(err, settings.ErrUnknownScope):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     err.Error(),
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) writeMessage(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   message,
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"success":   false,
		"error":     "method not allowed",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}
