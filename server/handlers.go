package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"LiveRadio/core/auth"
	"LiveRadio/core/radio"
	"LiveRadio/logger"
	"LiveRadio/model"
	"LiveRadio/repository"
	"LiveRadio/storage"
)

// maxUploadSize bounds a track payload (base64 audio plus cover image).
const maxUploadSize = 64 << 20

// APIHandler serves the public and admin routes.
type APIHandler struct {
	catalog   *radio.Catalog
	scheduler *radio.Scheduler
	publisher *radio.Publisher
	history   repository.PlayHistoryRepository // nil when history is disabled
	verifier  *auth.Verifier
}

func NewAPIHandler(
	catalog *radio.Catalog,
	scheduler *radio.Scheduler,
	publisher *radio.Publisher,
	history repository.PlayHistoryRepository,
	verifier *auth.Verifier,
) *APIHandler {
	return &APIHandler{
		catalog:   catalog,
		scheduler: scheduler,
		publisher: publisher,
		history:   history,
		verifier:  verifier,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"error": true})
}

// AdminMiddleware checks the "auth" header against the configured key.
func (h *APIHandler) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.verifier.Check(r.Header.Get("auth")) {
			logger.Warn("admin request rejected",
				logger.String("path", r.URL.Path),
				logger.String("remote", r.RemoteAddr))
			http.Error(w, "Authorization Failed", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// onAir is the snapshot clients should be following: the published one,
// else the scheduler's in-memory one.
func (h *APIHandler) onAir(ctx context.Context) (model.Snapshot, bool) {
	if snap, ok := h.publisher.FetchSnapshot(ctx); ok {
		return snap, true
	}
	return h.scheduler.Snapshot()
}

// GetSongHandler returns the raw payload of the track on air, or
// {"error": true} while the scheduler is idle. When the payload is gone it
// falls back to the first catalog entry.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	source := h.catalog.Source()

	if snap, ok := h.onAir(ctx); ok {
		if snap.Idle() {
			writeError(w)
			return
		}
		payload, err := source.Read(ctx, snap.Name)
		if err == nil {
			writeRaw(w, payload)
			return
		}
		logger.Warn("failed to read current track", logger.String("track", snap.Name), logger.ErrorField(err))
	}

	if entries := h.catalog.Entries(); len(entries) > 0 {
		if payload, err := source.Read(ctx, entries[0]); err == nil {
			writeRaw(w, payload)
			return
		}
	}
	writeError(w)
}

func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(payload); err != nil {
		logger.Warn("failed to write track payload", logger.ErrorField(err))
	}
}

// GetSongPositionHandler returns {"t", "mod"}.
func (h *APIHandler) GetSongPositionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.publisher.FetchStartData(r.Context()))
}

// GetBiSiHandler returns {"bi", "si"}.
func (h *APIHandler) GetBiSiHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.publisher.FetchBiSi(r.Context()))
}

// GetSnapshotHandler returns the combined snapshot so a client can read all
// synchronization fields in one request.
func (h *APIHandler) GetSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.publisher.FetchSnapshot(r.Context())
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]bool{"error": true})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetHistoryHandler lists recent plays, newest first. ?limit=N
func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "play history disabled"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Error("failed to load play history", logger.ErrorField(err))
		http.Error(w, "Failed to load play history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// UploadSongHandler stores the request body as a track named by the
// "file-name" header and refreshes the catalog.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.Header.Get("file-name"))
	if err := storage.ValidateName(name); err != nil {
		http.Error(w, "Invalid file-name header", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if !json.Valid(payload) {
		http.Error(w, "Track payload must be JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.catalog.Source().Add(ctx, name, payload); err != nil {
		logger.Error("failed to store uploaded track", logger.String("track", name), logger.ErrorField(err))
		http.Error(w, "Failed to store track", http.StatusInternalServerError)
		return
	}
	if err := h.catalog.Refresh(ctx); err != nil {
		logger.Warn("catalog refresh after upload failed", logger.ErrorField(err))
	}

	logger.Info("track uploaded", logger.String("track", name), logger.Int("size", len(payload)))
	io.WriteString(w, "Success")
}

// UpdateSongsListHandler re-enumerates the catalog.
func (h *APIHandler) UpdateSongsListHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		logger.Error("catalog refresh failed", logger.ErrorField(err))
		http.Error(w, "Failed to refresh catalog", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Success")
}

// GetSongsListHandler lists the catalog with titles and durations.
func (h *APIHandler) GetSongsListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Describe(r.Context()))
}

// DeleteSongHandler removes the track named by the "file-name" header.
// The scheduler keeps playing a deleted track until it ends.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.Header.Get("file-name"))
	if err := storage.ValidateName(name); err != nil {
		http.Error(w, "Invalid file-name header", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.catalog.Source().Remove(ctx, name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Track not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to delete track", logger.String("track", name), logger.ErrorField(err))
		http.Error(w, "Failed to delete track", http.StatusInternalServerError)
		return
	}
	if err := h.catalog.Refresh(ctx); err != nil {
		logger.Warn("catalog refresh after delete failed", logger.ErrorField(err))
	}

	logger.Info("track deleted", logger.String("track", name))
	io.WriteString(w, "Success")
}

// RestartPlayerHandler restarts the scheduler from the first catalog entry.
func (h *APIHandler) RestartPlayerHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.scheduler.Restart(); err != nil {
		logger.Error("failed to restart player", logger.ErrorField(err))
		http.Error(w, "failed to restart", http.StatusInternalServerError)
		return
	}
	logger.Info("player restarted", logger.Duration("took", time.Since(start)))
	io.WriteString(w, "player restarted")
}

// GetStatusHandler reports the scheduler state.
func (h *APIHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}
