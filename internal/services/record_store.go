package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/storage"
	"selfie-mailer/internal/utils"
)

// RecordsKey is the fixed object key of the record document
const RecordsKey = "metadata/photos.json"

// RecordStore owns the Record Collection.
// List returns records newest first; Append assigns id and created_at.
type RecordStore interface {
	List(ctx context.Context) ([]models.CaptureRecord, error)
	Append(ctx context.Context, in models.RecordInput) (*models.CaptureRecord, error)
}

// DocumentRecordStore persists the whole collection as one JSON array in the
// object store and rewrites it on every append.
//
// Appends are serialized within the process. Two processes appending at the
// same time can still lose one of the updates (last write wins).
type DocumentRecordStore struct {
	objects storage.ObjectStore
	key     string
	now     func() time.Time
	mu      sync.Mutex
}

func NewDocumentRecordStore(objects storage.ObjectStore) *DocumentRecordStore {
	return &DocumentRecordStore{objects: objects, key: RecordsKey, now: time.Now}
}

// List never fails: a missing document is an empty collection, and other read
// failures are logged and treated the same way.
func (s *DocumentRecordStore) List(ctx context.Context) ([]models.CaptureRecord, error) {
	records, err := s.load(ctx)
	if err != nil {
		utils.LogError(err, "ReadRecords")
		records = []models.CaptureRecord{}
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *DocumentRecordStore) Append(ctx context.Context, in models.RecordInput) (*models.CaptureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		// refusing here keeps a transient read failure from overwriting the
		// collection with a single record
		return nil, fmt.Errorf("read records: %w", err)
	}

	rec := models.CaptureRecord{
		ID:        nextID(records),
		UserEmail: in.UserEmail,
		ImageURL:  in.ImageURL,
		AIComment: in.AIComment,
		Emoji:     in.Emoji,
		CreatedAt: s.now().UTC(),
	}
	records = append(records, rec)

	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err := s.objects.Put(ctx, s.key, body, "application/json"); err != nil {
		return nil, fmt.Errorf("write records: %w", err)
	}
	return &rec, nil
}

func (s *DocumentRecordStore) load(ctx context.Context) ([]models.CaptureRecord, error) {
	body, err := s.objects.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.CaptureRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	records := []models.CaptureRecord{}
	if len(body) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return records, nil
}

func nextID(records []models.CaptureRecord) int {
	max := 0
	for _, r := range records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

func sortNewestFirst(records []models.CaptureRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

