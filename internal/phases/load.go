package phases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/clock/system"
	hashsha256 "github.com/JakeFAU/restaurant-pipeline/internal/hash/sha256"
	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/publisher"
	"github.com/JakeFAU/restaurant-pipeline/internal/storage"
)

// ErrNoRecord is returned when a load task arrives without a record.
var ErrNoRecord = errors.New("task has no record")

// Load writes each record as JSON to the blob store and, when a publisher is
// configured, announces it. Objects are keyed by a digest of the record URL,
// so pages with identical bodies never share a path.
type Load struct {
	blobs     storage.BlobStore
	prefix    string
	publisher publisher.Publisher
	clock     pipeline.Clock
	logger    *zap.Logger
}

// NewLoad builds the load phase. pub and clock may be nil.
func NewLoad(blobs storage.BlobStore, prefix string, pub publisher.Publisher, clock pipeline.Clock, logger *zap.Logger) *Load {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Load{blobs: blobs, prefix: prefix, publisher: pub, clock: clock, logger: logger.Named("load")}
}

// Run implements pipeline.TaskFunc.
func (l *Load) Run(ctx context.Context, task pipeline.Task) error {
	rec := task.Record
	if rec == nil {
		return fmt.Errorf("load %s: %w", task.URL, ErrNoRecord)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.URL, err)
	}

	key, err := hashsha256.New().Hash([]byte(rec.URL))
	if err != nil {
		return fmt.Errorf("record key %s: %w", rec.URL, err)
	}
	obj := storage.Object{
		Path:        storage.RecordPath(l.prefix, rec.RunID, key),
		ContentType: "application/json",
		Metadata: map[string]string{
			"run_id":       rec.RunID,
			"source_url":   rec.URL,
			"content_hash": rec.ContentHash,
		},
	}
	uri, err := l.blobs.PutObject(ctx, obj, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.URL, err)
	}
	l.logger.Info("record stored", zap.String("url", rec.URL), zap.String("uri", uri))

	if l.publisher == nil {
		return nil
	}
	msgID, err := l.publisher.Publish(ctx, publisher.Notice{
		RunID:       rec.RunID,
		Restaurant:  rec.Restaurant.Name,
		URL:         rec.URL,
		ObjectURI:   uri,
		ContentHash: rec.ContentHash,
		LoadedAt:    l.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish record %s: %w", rec.URL, err)
	}
	l.logger.Debug("record announced", zap.String("message_id", msgID))
	return nil
}
