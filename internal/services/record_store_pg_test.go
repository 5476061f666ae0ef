package services

import (
	"context"
	"os"
	"testing"
	"time"

	"selfie-mailer/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRecordStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	// temp tables are per connection
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	// a zone far from UTC shows any wall clock shift in created_at
	_, err = conn.Exec(ctx, `SET TIME ZONE 'Asia/Kolkata'`)
	require.NoError(t, err)
	defer conn.Exec(ctx, `RESET TIME ZONE`)
	_, err = conn.Exec(ctx, `CREATE TEMP TABLE IF NOT EXISTS photos (
		id SERIAL PRIMARY KEY,
		user_email VARCHAR(255) NOT NULL,
		image_url TEXT NOT NULL,
		ai_comment TEXT NOT NULL,
		emoji VARCHAR(10),
		created_at TIMESTAMPTZ DEFAULT clock_timestamp()
	)`)
	require.NoError(t, err)
	s := NewPostgresRecordStore(conn)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	first, err := s.Append(ctx, models.RecordInput{UserEmail: "a@x.com", ImageURL: "u1", AIComment: "c1", Emoji: "🐶"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, time.UTC, first.CreatedAt.Location())
	assert.WithinDuration(t, time.Now(), first.CreatedAt, time.Minute)

	second, err := s.Append(ctx, models.RecordInput{UserEmail: "b@x.com", ImageURL: "u2", AIComment: "c2"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	records, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].ID)
	assert.Equal(t, "", records[0].Emoji)
	assert.Equal(t, "🐶", records[1].Emoji)
	assert.WithinDuration(t, first.CreatedAt, records[1].CreatedAt, time.Millisecond)
	assert.Equal(t, time.UTC, records[1].CreatedAt.Location())
}
