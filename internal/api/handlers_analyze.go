package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/docproof/internal/parser"
	"github.com/dgallion1/docproof/internal/pipeline"
	"github.com/dgallion1/docproof/internal/report"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	start, end, err := pageBounds(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > maxBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes), http.StatusRequestEntityTooLarge)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), filename, data, start, end)
	if err := s.jobs.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitted(job))
}

func (s *Server) handleBatchAnalyze(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	start, end, err := pageBounds(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := readPart(fh, maxBytes)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(uuid.NewString(), filename, data, start, end)
		if err := s.jobs.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, submitted(job))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) handleAnalyzeStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleAnalyzeReport(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = s.cfg.Output.Format
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	body, err := report.Render(job.Result(), format)
	if err != nil {
		s.log.Error("render report failed", "job_id", snap.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.Write(body)
}

func submitted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":     snap.ID,
		"filename":   snap.Filename,
		"status":     snap.Status,
		"poll_url":   fmt.Sprintf("/api/analyze/%s/status", snap.ID),
		"report_url": fmt.Sprintf("/api/analyze/%s/report", snap.ID),
	}
}

// pageBounds reads the optional start_page and end_page form values and
// rejects ranges that can never be valid.
func pageBounds(r *http.Request) (start, end *int, err error) {
	parse := func(key string) (*int, error) {
		v := strings.TrimSpace(r.FormValue(key))
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		return &n, nil
	}
	if start, err = parse("start_page"); err != nil {
		return nil, nil, err
	}
	if end, err = parse("end_page"); err != nil {
		return nil, nil, err
	}
	if err := pipeline.ValidateRequested(start, end); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("failed to open file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil || int64(len(data)) > maxBytes {
		return nil, errors.New("file too large or read error")
	}
	return data, nil
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
