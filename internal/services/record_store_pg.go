package services

import (
	"context"
	"sync"

	"selfie-mailer/internal/models"
	"selfie-mailer/internal/utils"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRecordStore keeps capture records in the photos table.
// Ids come from the SERIAL column, so a failed insert leaves a gap.
// created_at is TIMESTAMPTZ and is returned in UTC.
type PostgresRecordStore struct {
	q  Querier
	mu sync.Mutex
}

func NewPostgresRecordStore(q Querier) *PostgresRecordStore {
	return &PostgresRecordStore{q: q}
}

func (s *PostgresRecordStore) List(ctx context.Context) ([]models.CaptureRecord, error) {
	records := []models.CaptureRecord{}

	query := `SELECT id, user_email, image_url, ai_comment, emoji, created_at FROM photos ORDER BY created_at DESC`
	rows, err := s.q.Query(ctx, query)
	if err != nil {
		utils.LogError(err, "ListPhotos")
		return records, nil
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.CaptureRecord
		var emoji *string
		if err := rows.Scan(&rec.ID, &rec.UserEmail, &rec.ImageURL, &rec.AIComment, &emoji, &rec.CreatedAt); err != nil {
			utils.LogError(err, "ListPhotos")
			return []models.CaptureRecord{}, nil
		}
		if emoji != nil {
			rec.Emoji = *emoji
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		utils.LogError(err, "ListPhotos")
		return []models.CaptureRecord{}, nil
	}
	return records, nil
}

func (s *PostgresRecordStore) Append(ctx context.Context, in models.RecordInput) (*models.CaptureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emoji *string
	if in.Emoji != "" {
		emoji = &in.Emoji
	}

	rec := models.CaptureRecord{
		UserEmail: in.UserEmail,
		ImageURL:  in.ImageURL,
		AIComment: in.AIComment,
		Emoji:     in.Emoji,
	}
	query := `INSERT INTO photos (user_email, image_url, ai_comment, emoji) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := s.q.QueryRow(ctx, query, in.UserEmail, in.ImageURL, in.AIComment, emoji).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
