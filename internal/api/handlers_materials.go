package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/parser"
	"github.com/dgallion1/quizgest/internal/pipeline"
)

func (s *Server) handleUploadMaterial(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	courseID := strings.TrimSpace(r.FormValue("course_id"))
	if courseID == "" {
		jsonError(w, "course_id is required", http.StatusBadRequest)
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

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	res, err := s.orchestrator.Ingest(r.Context(), pipeline.Upload{
		CourseID: courseID,
		Filename: filename,
		Title:    r.FormValue("title"),
		Data:     data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Duplicate {
		code = http.StatusOK
	}
	m := res.Material
	writeJSON(w, code, map[string]any{
		"material_id":  m.ID,
		"course_id":    m.CourseID,
		"title":        m.Title,
		"filename":     m.Filename,
		"content_hash": m.ContentHash,
		"sections":     len(m.Document.Sections),
		"duplicate":    res.Duplicate,
	})
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := s.orchestrator.Material(r.Context(), chi.URLParam(r, "materialID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Fragments are layout detail; clients get titles and content only.
	out := *m
	out.Document.Sections = make([]doctree.Section, len(m.Document.Sections))
	for i, sec := range m.Document.Sections {
		sec.Fragments = nil
		out.Document.Sections[i] = sec
	}
	writeJSON(w, http.StatusOK, out)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
