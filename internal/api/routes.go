package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/fieldside/tagd/internal/events"
)

const defaultClipPaddingS = 2.0

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", healthHandler(cfg))
	r.Get("/version", versionHandler(cfg))

	r.Get("/events", listEventsHandler(cfg))
	r.Post("/events", createEventHandler(cfg))
	r.Patch("/events/{id}", updateEventHandler(cfg))
	r.Delete("/events/{id}", deleteEventHandler(cfg))

	r.Get("/export/csv", exportCSVHandler(cfg))
	r.Get("/export/xlsx", exportXLSXHandler(cfg))

	r.Post("/extract", extractHandler(cfg))
	r.Post("/upload", uploadHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := cfg.EventService.Count(r.Context())
		if err != nil {
			cfg.Logger.Error("failed to count events", "error", err)
			WriteError(w, http.StatusInternalServerError, "storage unavailable", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			Events:  count,
			Time:    time.Now().UnixMilli(),
		})
	}
}

func versionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, VersionResponse{Version: cfg.Version})
	}
}

func listEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		label := r.URL.Query().Get("label")

		list, err := cfg.EventService.List(r.Context(), label)
		if err != nil {
			cfg.Logger.Error("failed to list events", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list events", "INTERNAL_ERROR")
			return
		}

		resp := make([]EventResponse, len(list))
		for i, e := range list {
			resp[i] = EventToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createEventHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.TimestampS == nil {
			WriteError(w, http.StatusBadRequest, "timestamp_s is required", "BAD_REQUEST")
			return
		}

		event, err := cfg.EventService.Create(r.Context(), events.NewEvent{
			TimestampS: *req.TimestampS,
			Label:      req.Label,
			Note:       req.Note,
			MatchID:    req.MatchID,
			Player:     req.Player,
			Severity:   req.Severity,
		})
		if err != nil {
			if events.IsValidation(err) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			cfg.Logger.Error("failed to create event", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to create event", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, EventToResponse(event))
	}
}

func updateEventHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "event id required", "BAD_REQUEST")
			return
		}

		var patch events.EventPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && err != io.EOF {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		event, err := cfg.EventService.Update(r.Context(), id, patch)
		if err != nil {
			if events.IsValidation(err) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			if errors.Is(err, events.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "event not found", "NOT_FOUND")
				return
			}
			cfg.Logger.Error("failed to update event", "error", err, "event_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to update event", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, EventToResponse(event))
	}
}

func deleteEventHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := cfg.EventService.Delete(r.Context(), id); err != nil {
			cfg.Logger.Error("failed to delete event", "error", err, "event_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to delete event", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, DeleteResponse{OK: true})
	}
}

func exportCSVHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.EventService.List(r.Context(), "")
		if err != nil {
			cfg.Logger.Error("failed to list events for export", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export events", "INTERNAL_ERROR")
			return
		}

		data, err := cfg.ExportCSV(list)
		if err != nil {
			cfg.Logger.Error("csv export failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export events", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="events.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func exportXLSXHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.EventService.List(r.Context(), "")
		if err != nil {
			cfg.Logger.Error("failed to list events for export", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export events", "INTERNAL_ERROR")
			return
		}

		data, err := cfg.ExportXLSX(list)
		if err != nil {
			cfg.Logger.Error("xlsx export failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export events", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="events.xlsx"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func extractHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Extractor == nil {
			WriteError(w, http.StatusInternalServerError, "clip extraction unavailable: ffmpeg not found", "FFMPEG_UNAVAILABLE")
			return
		}

		var req ExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Source == "" {
			WriteError(w, http.StatusBadRequest, "source is required", "BAD_REQUEST")
			return
		}

		pre, post := defaultClipPaddingS, defaultClipPaddingS
		if req.Pre != nil {
			pre = *req.Pre
		}
		if req.Post != nil {
			post = *req.Post
		}
		if pre < 0 || post < 0 {
			WriteError(w, http.StatusBadRequest, "pre and post must be non-negative", "BAD_REQUEST")
			return
		}

		list, err := cfg.EventService.List(r.Context(), "")
		if err != nil {
			cfg.Logger.Error("failed to list events for extraction", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list events", "INTERNAL_ERROR")
			return
		}

		outDir := filepath.Join(cfg.ClipsDir, strconv.FormatInt(time.Now().UnixMilli(), 10))

		paths, err := cfg.Extractor.Extract(r.Context(), req.Source, pre, post, list, outDir)
		if err != nil {
			cfg.Logger.Error("extraction failed", "error", err, "source", req.Source)
			WriteError(w, http.StatusInternalServerError, err.Error(), "EXTRACTION_FAILED")
			return
		}

		WriteJSON(w, http.StatusOK, ExtractResponse{OutDir: outDir, Clips: paths})
	}
}

const maxUploadBytes = 2 << 30 // 2 GB

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "video file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
			cfg.Logger.Error("failed to create uploads dir", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
			return
		}

		name := events.NewID() + filepath.Ext(header.Filename)
		dst, err := os.Create(filepath.Join(cfg.UploadsDir, name))
		if err != nil {
			cfg.Logger.Error("failed to create upload file", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
			return
		}
		defer dst.Close()

		if _, err := io.Copy(dst, file); err != nil {
			cfg.Logger.Error("failed to write upload", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, UploadResponse{File: name})
	}
}
