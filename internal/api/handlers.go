package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/review"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

const (
	uploadField = "file"

	msgUnsupportedMedia = "only JPG/PNG images are supported"
	msgRequestFailed    = "the OCR service could not process the image, please try again"
)

// Handler holds the API handlers
type Handler struct {
	extractor ocr.Extractor
	drafts    *review.Manager
	store     storage.Store
	maxUpload int64
	started   time.Time
	logger    *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(extractor ocr.Extractor, drafts *review.Manager, store storage.Store, maxUpload int64, logger *logger.Logger) *Handler {
	return &Handler{
		extractor: extractor,
		drafts:    drafts,
		store:     store,
		maxUpload: maxUpload,
		started:   time.Now(),
		logger:    logger.Named("api"),
	}
}

// ExtractionResponse is returned by the extraction endpoints
type ExtractionResponse struct {
	Record    inspection.Record `json:"record"`
	Fallback  bool              `json:"fallback"`
	Source    string            `json:"source"`
	ImageHash string            `json:"imageHash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (h *Handler) requestLogger(r *http.Request) *logger.Logger {
	return h.logger.WithRequestID(middleware.GetReqID(r.Context()))
}

// GetHealth reports liveness
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// CreateExtraction runs one extraction without touching any draft
func (h *Handler) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.extractor.Extract(r.Context(), img)
	if err != nil {
		h.writeExtractionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// ListRecords returns every registered record
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.requestLogger(r).Error("Failed to list records", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []inspection.Stored{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetRecord returns one registered record
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.requestLogger(r).Error("Failed to get record", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord registers a record sent by the client
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	stored, err := h.store.Save(r.Context(), rec)
	if err != nil {
		h.requestLogger(r).Error("Failed to save record", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ExtractDraft extracts an upload into the session draft
func (h *Handler) ExtractDraft(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.drafts.Extract(r.Context(), chi.URLParam(r, "session"), img)
	if err != nil {
		h.writeExtractionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// GetDraft returns the session draft
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.drafts.Lookup(chi.URLParam(r, "session"))
	if !ok {
		writeError(w, http.StatusNotFound, review.ErrNoDraft.Error())
		return
	}
	d, ok := s.Draft()
	if !ok {
		writeError(w, http.StatusNotFound, review.ErrNoDraft.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateDraft replaces the session draft with the operator's edits
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	d := h.drafts.Edit(chi.URLParam(r, "session"), rec)
	writeJSON(w, http.StatusOK, d)
}

// CommitDraft registers the session draft
func (h *Handler) CommitDraft(w http.ResponseWriter, r *http.Request) {
	stored, err := h.drafts.Commit(r.Context(), chi.URLParam(r, "session"), h.store)
	if errors.Is(err, review.ErrNoDraft) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.requestLogger(r).Error("Failed to commit draft", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// DeleteDraft discards the session and anything still in flight for it
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	h.drafts.Drop(chi.URLParam(r, "session"))
	w.WriteHeader(http.StatusNoContent)
}

// readUpload reads the multipart image. The declared part type is trusted
// unless it is missing or generic, in which case the bytes are sniffed.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (extraction.Image, bool) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return extraction.Image{}, false
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return extraction.Image{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return extraction.Image{}, false
	}

	return extraction.Image{
		MediaType: extraction.DetectMediaType(header.Header.Get("Content-Type"), data),
		Data:      data,
	}, true
}

func (h *Handler) writeExtractionError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.requestLogger(r)
	switch {
	case errors.Is(err, extraction.ErrUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, msgUnsupportedMedia)
	case errors.Is(err, review.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, extraction.ErrRequestFailed):
		log.Warn("Extraction request failed", logger.Error(err))
		writeError(w, http.StatusBadGateway, msgRequestFailed)
	default:
		log.Error("Extraction failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "extraction failed")
	}
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (inspection.Record, bool) {
	var rec inspection.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record JSON")
		return rec, false
	}
	return rec, true
}

func toResponse(res ocr.Result) ExtractionResponse {
	return ExtractionResponse{
		Record:    res.Record,
		Fallback:  res.IsFallback(),
		Source:    string(res.Source),
		ImageHash: res.ImageHash,
	}
}
