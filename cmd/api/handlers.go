package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/ufobeep/beepnet/internal/alertsvc"
	"github.com/ufobeep/beepnet/internal/beeperr"
	"github.com/ufobeep/beepnet/internal/media"
)

// maxMediaUploadBytes caps a single media association request's total
// multipart body, per §6's file-size ceiling.
const maxMediaUploadBytes = 50 << 20

// api holds the dependencies every handler closes over.
type api struct {
	core *alertsvc.Core
}

func (a *api) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, beeperr.Wrap(beeperr.KindInput, "api", "malformed request body", err))
		return
	}

	result, err := a.core.Ingest(r.Context(), req.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIngestResponse(result))
}

func (a *api) confirmWitness(w http.ResponseWriter, r *http.Request) {
	sightingID := chi.URLParam(r, "id")

	var req confirmationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, beeperr.Wrap(beeperr.KindInput, "api", "malformed request body", err))
		return
	}

	result, err := a.core.ConfirmWitness(r.Context(), sightingID, req.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfirmationResponse(result))
}

func (a *api) listSightings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	result, err := a.core.ListSightings(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(result))
}

func (a *api) sightingDetail(w http.ResponseWriter, r *http.Request) {
	sightingID := chi.URLParam(r, "id")

	result, err := a.core.GetSightingDetail(r.Context(), sightingID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(result))
}

func (a *api) witnessStatus(w http.ResponseWriter, r *http.Request) {
	sightingID := chi.URLParam(r, "id")
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, beeperr.New(beeperr.KindInput, "api", "device_id query parameter is required"))
		return
	}

	result, err := a.core.WitnessStatus(r.Context(), sightingID, deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWitnessStatusResponse(result))
}

// attachMedia implements the §6 media association endpoint: a multipart form
// with one or more "files" parts, each persisted and variant-generated by
// internal/media.
func (a *api) attachMedia(w http.ResponseWriter, r *http.Request) {
	sightingID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxMediaUploadBytes)
	if err := r.ParseMultipartForm(maxMediaUploadBytes); err != nil {
		writeError(w, beeperr.Wrap(beeperr.KindInput, "api", "malformed multipart body", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, beeperr.New(beeperr.KindInput, "api", "at least one file is required"))
		return
	}

	uploads := make([]media.Upload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			writeError(w, beeperr.Wrap(beeperr.KindInput, "api", "failed to open uploaded file", err))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, beeperr.Wrap(beeperr.KindInput, "api", "failed to read uploaded file", err))
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, media.Upload{Filename: fh.Filename, ContentType: contentType, Data: data})
	}

	result, err := a.core.AttachMedia(r.Context(), sightingID, uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMediaResponse(result))
}

// queryInt binds a "form"-style query parameter the way oapi-codegen's
// generated server stubs do, since this repository's routes aren't
// spec-generated but still use the corpus's param-binding library rather
// than hand-rolling strconv parsing for every query parameter.
func queryInt(r *http.Request, key string, def int) int {
	v := def
	if err := runtime.BindQueryParameter("form", true, false, key, r.URL.Query(), &v); err != nil {
		return def
	}
	if v < 0 {
		return def
	}
	return v
}
