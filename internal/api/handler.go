package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ContentTypeBinary marks a message body as a binary payload.
const ContentTypeBinary = "application/octet-stream"

const defaultMaxBodyBytes = 1 << 20

type handler struct {
	sender RouteSender
	ka     KeepAliveState
	cfg    HandlerConfig
	logger *slog.Logger
}

// NewHandler returns the provider HTTP API.
func NewHandler(sender RouteSender, ka KeepAliveState, cfg HandlerConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	h := &handler{sender: sender, ka: ka, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("POST /v1/routes/{id}/messages", h.auth(h.sendMessage))
	mux.Handle("PUT /v1/routes/{id}/listen", h.auth(h.listen))
	mux.Handle("DELETE /v1/routes/{id}/listen", h.auth(h.stopListening))
	mux.Handle("DELETE /v1/routes/{id}", h.auth(h.removeRoute))
	mux.Handle("GET /v1/stats", h.auth(h.stats))
	return mux
}

func (h *handler) auth(next http.HandlerFunc) http.Handler {
	if h.cfg.Token == "" {
		return next
	}
	want := []byte("Bearer " + h.cfg.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Instance: h.cfg.InstanceID,
		Version:  h.cfg.Version,
	}
	if h.ka != nil {
		resp.KeepAlive = h.ka.Active()
		resp.Holders = h.ka.Holders()
	}
	if h.cfg.LinkUp != nil {
		up := h.cfg.LinkUp()
		resp.LinkConnected = &up
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	routeID := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "message body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	if isBinary(r.Header.Get("Content-Type")) {
		h.sender.SendBinary(routeID, body)
		writeJSON(w, http.StatusAccepted, SendResponse{RouteID: routeID, Kind: "binary", Bytes: len(body)})
		return
	}

	if !utf8.Valid(body) {
		writeError(w, http.StatusBadRequest, "text message is not valid UTF-8")
		return
	}
	h.sender.SendText(routeID, string(body))
	writeJSON(w, http.StatusAccepted, SendResponse{RouteID: routeID, Kind: "text", Bytes: len(body)})
}

func (h *handler) listen(w http.ResponseWriter, r *http.Request) {
	h.sender.Listen(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stopListening(w http.ResponseWriter, r *http.Request) {
	h.sender.StopListening(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) removeRoute(w http.ResponseWriter, r *http.Request) {
	h.sender.OnRouteRemoved(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sender.Stats())
}

func isBinary(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(contentType, ContentTypeBinary)
	}
	return mt == ContentTypeBinary
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
