package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediashrink/internal/domain"
)

const multipartMemory = 32 << 20

func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file field is required")
		return
	}
	defer file.Close()

	var targetMB float64
	if v := strings.TrimSpace(r.FormValue("target_size_mb")); v != "" {
		targetMB, err = strconv.ParseFloat(v, 64)
		if err != nil || targetMB < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "target_size_mb must be a non-negative number; 0 skips the estimate")
			return
		}
	}
	var audioKbps int
	if v := strings.TrimSpace(r.FormValue("audio_bitrate_kbps")); v != "" {
		audioKbps, err = strconv.Atoi(v)
		if err != nil || audioKbps < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "audio_bitrate_kbps must be a non-negative integer; 0 selects the default")
			return
		}
	}

	res, err := a.Jobs.Upload(r.Context(), header.Filename, file, targetMB, audioKbps)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) Compress(w http.ResponseWriter, r *http.Request) {
	var req domain.EncodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Jobs.StartCompress(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) Cancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.Jobs.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, outcome)
}

func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	path, filename, err := a.Jobs.Artifact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}
