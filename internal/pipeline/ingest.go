package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/quizgest/internal/chunker"
	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/parser"
	"github.com/dgallion1/quizgest/internal/store"
	"github.com/dgallion1/quizgest/internal/structure"
)

// Upload is a source file submitted for a course.
type Upload struct {
	CourseID string
	Filename string
	Title    string
	Data     []byte
}

// IngestResult reports the stored material. Duplicate is set when the same
// content already existed in the course and that material is returned.
type IngestResult struct {
	Material  *store.Material
	Duplicate bool
}

// Ingest extracts, structures and stores an upload. Extraction failures wrap
// ErrExtraction; no job is created for them.
func (o *Orchestrator) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	log := o.log.With("course_id", up.CourseID, "filename", up.Filename)

	frags, err := parser.Extract(bytes.NewReader(up.Data), up.Filename, parser.Options{
		PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext,
	})
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	doc := structure.New(nil).Structure(frags)
	hash := ContentHashHex([]byte(doc.Text()))

	existing, err := o.store.FindMaterialByHash(ctx, up.CourseID, hash)
	switch {
	case err == nil:
		log.Info("duplicate material, skipping", "material_id", existing.ID)
		return &IngestResult{Material: existing, Duplicate: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: dedup lookup: %w", ErrPersistence, err)
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = materialTitle(doc, up.Filename)
	}
	m := &store.Material{
		ID:          uuid.NewString(),
		CourseID:    up.CourseID,
		Filename:    up.Filename,
		Title:       title,
		ContentHash: hash,
		Document:    *doc,
	}
	if err := o.store.CreateMaterial(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: create material: %w", ErrPersistence, err)
	}
	log.Info("material stored", "material_id", m.ID, "sections", len(doc.Sections))

	if o.indexer != nil {
		o.index(ctx, m)
	}
	return &IngestResult{Material: m}, nil
}

// index makes the material searchable. Failure only costs retrieval
// augmentation, so it is logged.
func (o *Orchestrator) index(ctx context.Context, m *store.Material) {
	chunks, err := chunker.ChunkDocument(&m.Document, o.cfg.DefaultChunking())
	if err == nil {
		err = o.indexer.Index(ctx, m.CourseID, m.ID, chunks)
	}
	if err != nil {
		o.log.Warn("index material failed", "material_id", m.ID, "error", err)
	}
}

// materialTitle uses the structured title when the document had headings,
// otherwise the file name without its extension.
func materialTitle(doc *doctree.Document, filename string) string {
	for _, s := range doc.Sections {
		if s.Title != structure.IntroductionTitle && doc.Title != structure.UntitledDocument {
			return doc.Title
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
