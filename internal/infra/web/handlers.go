package web

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"garment-studio/internal/domain"
	"garment-studio/internal/infra/logging"
	"garment-studio/internal/usecase"
)

const maxUploadBytes = 20 << 20

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

type handlers struct {
	uc  usecase.CustomizationUseCase
	log *zerolog.Logger
}

type preprocessResponse struct {
	Usable            bool   `json:"usable"`
	Reason            string `json:"reason,omitempty"`
	ProcessedImageURL string `json:"processed_image_url,omitempty"`
}

type generateResponse struct {
	JobID           int64  `json:"job_id"`
	Status          string `json:"status"`
	DesignImageURL  string `json:"design_image_url"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

type tryOnStartResponse struct {
	JobID         int64  `json:"job_id,omitempty"`
	ProviderJobID string `json:"provider_job_id"`
}

type statusResponse struct {
	JobID          int64  `json:"job_id,omitempty"`
	Status         string `json:"status"`
	ResultImageURL string `json:"result_image_url,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

type jobResponse struct {
	JobID           int64  `json:"job_id"`
	Status          string `json:"status"`
	Prompt          string `json:"prompt"`
	SourceImageURL  string `json:"source_image_url,omitempty"`
	DesignImageURL  string `json:"design_image_url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
	ResultImageURL  string `json:"result_image_url,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func formFile(r *http.Request, field string) (multipart.File, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}

func (h *handlers) preprocess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, filename, err := formFile(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	out, err := h.uc.PreprocessGarment(r.Context(), file, filename, r.FormValue("prompt"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preprocessResponse{
		Usable:            out.Usable,
		Reason:            out.Reason,
		ProcessedImageURL: out.ProcessedImageURL,
	})
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, filename, err := formFile(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	userID := userFromContext(r.Context())
	ctx := logging.WithUserID(r.Context(), userID)
	out, err := h.uc.GenerateGarmentFromPrompt(ctx, userID, r.FormValue("prompt"), file, filename)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, generateResponse{
		JobID:           out.JobID,
		Status:          string(out.Status),
		DesignImageURL:  out.DesignImageURL,
		PreviewImageURL: out.PreviewImageURL,
	})
}

func (h *handlers) startTryOn(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "job id must be numeric")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, filename, err := formFile(r, "person_image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "person_image file is required")
		return
	}
	defer file.Close()

	userID := userFromContext(r.Context())
	ctx := logging.WithJobID(logging.WithUserID(r.Context(), userID), jobID)
	out, err := h.uc.StartTryOnPipeline(ctx, userID, jobID, file, filename)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tryOnStartResponse{
		JobID:         out.JobID,
		ProviderJobID: out.ProviderJobID,
	})
}

func (h *handlers) tryOnDirect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	person, personName, err := formFile(r, "person_image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "person_image file is required")
		return
	}
	defer person.Close()
	garment, garmentName, err := formFile(r, "garment_image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "garment_image file is required")
		return
	}
	defer garment.Close()

	out, err := h.uc.StartTryOnDirect(r.Context(), person, personName, garment, garmentName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tryOnStartResponse{ProviderJobID: out.ProviderJobID})
}

func (h *handlers) tryOnStatus(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())
	out, err := h.uc.GetStatus(logging.WithUserID(r.Context(), userID), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:          out.JobID,
		Status:         string(out.Status),
		ResultImageURL: out.ResultImageURL,
		FailureReason:  out.FailureReason,
	})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "job id must be numeric")
		return
	}
	userID := userFromContext(r.Context())
	job, err := h.uc.GetJob(r.Context(), userID, jobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		JobID:           job.ID,
		Status:          string(job.Status),
		Prompt:          job.Prompt,
		SourceImageURL:  job.SourceGarmentImageURL,
		DesignImageURL:  job.GeneratedDesignImageURL,
		PreviewImageURL: job.GeneratedPreviewImageURL,
		ResultImageURL:  job.ResultImageURL,
		FailureReason:   job.FailureReason,
		CreatedAt:       job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps domain errors onto HTTP statuses. Upstream details stay in
// the logs; clients get a stable message per class.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.With(r.Context(), h.log)
	var upstream *domain.UpstreamError
	var storage *domain.StorageError

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	case errors.As(err, &upstream):
		log.Error().Err(err).Str("provider", upstream.Provider).Msg("upstream call failed")
		writeError(w, http.StatusBadGateway, "image provider is unavailable")
	case errors.As(err, &storage):
		log.Error().Err(err).Str("op", storage.Op).Msg("storage call failed")
		writeError(w, http.StatusBadGateway, "image storage is unavailable")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
