package phases

import (
	"context"
	"errors"
	"fmt"
	"mime"

	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// ErrNoDocument is returned when a transform task arrives without a page.
var ErrNoDocument = errors.New("task has no document")

// Hasher fingerprints page bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Transform turns a fetched document into a Record and hands it to load.
type Transform struct {
	load   pipeline.Queue
	hasher Hasher
	fields *FieldExtractor
	ids    pipeline.IDGenerator
	logger *zap.Logger
}

// NewTransform builds the transform phase. fields may be nil.
func NewTransform(load pipeline.Queue, hasher Hasher, fields *FieldExtractor, ids pipeline.IDGenerator, logger *zap.Logger) *Transform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transform{load: load, hasher: hasher, fields: fields, ids: ids, logger: logger.Named("transform")}
}

// Run implements pipeline.TaskFunc.
func (t *Transform) Run(_ context.Context, task pipeline.Task) error {
	doc := task.Document
	if doc == nil {
		return fmt.Errorf("transform %s: %w", task.URL, ErrNoDocument)
	}
	sum, err := t.hasher.Hash(doc.Body)
	if err != nil {
		return fmt.Errorf("hash %s: %w", doc.URL, err)
	}

	contentType := doc.Header.Get("Content-Type")
	rec := &pipeline.Record{
		RunID:       task.RunID,
		Restaurant:  task.Restaurant,
		URL:         task.URL,
		StatusCode:  doc.StatusCode,
		ContentHash: sum,
		ContentSize: len(doc.Body),
		ContentType: contentType,
		FetchedAt:   doc.FetchedAt,
	}
	if isHTML(contentType) {
		rec.Fields = t.fields.Extract(doc.Body)
	}

	id, err := t.ids.NewID()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	next := task
	next.ID = id
	next.Document = nil
	next.Record = rec
	if err := t.load.Put(next); err != nil {
		return fmt.Errorf("queue load task: %w", err)
	}
	t.logger.Debug("record built",
		zap.String("url", task.URL),
		zap.String("content_hash", sum),
		zap.Int("fields", len(rec.Fields)),
	)
	return nil
}

// isHTML treats a missing content type as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
