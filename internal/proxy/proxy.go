// Package proxy forwards AI requests upstream with a server-held key so
// the browser never sees it.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgNotConfigured    = "API endpoint or API key not configured"
	msgInternal         = "Proxy internal error"
	msgTooLarge         = "Request body too large"
)

type Config struct {
	Endpoint     string
	APIKey       string
	MaxBodyBytes int64
	Timeout      time.Duration
}

type Handler struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewHandler(cfg Config, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With().Str("component", "proxy").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	if h.cfg.Endpoint == "" || h.cfg.APIKey == "" {
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	body := r.Body
	if h.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.log.Error().Err(err).Msg("Proxy error reading request")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		h.log.Error().Err(err).Msg("Proxy error building upstream request")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Proxy error calling upstream")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("Proxy error reading upstream response")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	h.log.Debug().Int("status", resp.StatusCode).Int("bytes", len(respBody)).Msg("Proxied AI request")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
