package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/savoir/corpus"
)

// registerAPI mounts the corpus operations under /api.
func registerAPI(r chi.Router, svc *corpus.Service, maxFileSize int64) {
	r.Post("/api/crawl", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SourceID string              `json:"source_id"`
			URL      string              `json:"url"`
			Options  corpus.CrawlOptions `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		jobID, err := svc.StartCrawl(r.Context(), req.SourceID, req.URL, req.Options)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 202, map[string]string{"job_id": jobID})
	})

	r.Get("/api/crawl/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.CrawlStatus(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, status)
	})

	r.Delete("/api/crawl/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		cancelled, err := svc.CancelCrawl(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]bool{"cancelled": cancelled})
	})

	r.Post("/api/scrape", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SourceID string `json:"source_id"`
			URL      string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		page, err := svc.ScrapeSinglePage(r.Context(), req.SourceID, req.URL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, page)
	})

	r.Post("/api/files/{sourceID}", func(w http.ResponseWriter, r *http.Request) {
		upload, opts, err := readUpload(r, maxFileSize)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.ProcessFile(r.Context(), chi.URLParam(r, "sourceID"), *upload, opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 201, res)
	})

	r.Post("/api/files/{sourceID}/reprocess", func(w http.ResponseWriter, r *http.Request) {
		var opts corpus.ProcessOptions
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
				writeError(w, 400, err)
				return
			}
		}
		res, err := svc.ReprocessFile(r.Context(), chi.URLParam(r, "sourceID"), &opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Delete("/api/sources/{sourceID}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteIngestedSource(r.Context(), chi.URLParam(r, "sourceID")); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	r.Get("/api/retrieve", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		topK, _ := strconv.Atoi(q.Get("k"))
		candidates, err := svc.Retrieve(r.Context(), q.Get("source"), q.Get("q"), topK)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"candidates": candidates})
	})
}

// readUpload parses a multipart upload: the file under "file", optional
// chunk_size form value.
func readUpload(r *http.Request, maxFileSize int64) (*corpus.Upload, *corpus.ProcessOptions, error) {
	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		return nil, nil, err
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}

	mimeType := header.Header.Get("Content-Type")
	upload := &corpus.Upload{
		Filename: header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Data:     data,
	}

	var opts *corpus.ProcessOptions
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, err
		}
		opts = &corpus.ProcessOptions{ChunkSize: n}
	}
	return upload, opts, nil
}

// writeServiceError maps corpus sentinels to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, corpus.ErrInvalidInput):
		writeError(w, 400, err)
	case errors.Is(err, corpus.ErrNotFound):
		writeError(w, 404, err)
	case errors.Is(err, corpus.ErrFileMissing):
		writeError(w, 410, err)
	case errors.Is(err, corpus.ErrFileTooLarge):
		writeError(w, 413, err)
	case errors.Is(err, corpus.ErrUnsupportedType):
		writeError(w, 415, err)
	default:
		writeError(w, 500, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
