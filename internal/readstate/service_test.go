package readstate

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

type fakeDBTX struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execArgs     []any
}

func (d *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execArgs = args
	return pgconn.CommandTag{}, nil
}

func (d *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.queryRowFunc != nil {
		return d.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func TestMarkViewedWritesCurrentTime(t *testing.T) {
	db := &fakeDBTX{}
	svc := NewService(nil, db)
	fixed := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.MarkViewed(context.Background(), "wallet-1", "chan-1"))
	require.Len(t, db.execArgs, 3)
	assert.Equal(t, "wallet-1", db.execArgs[0])
	assert.Equal(t, "chan-1", db.execArgs[1])
	assert.Equal(t, fixed, db.execArgs[2])
}

func TestMarkViewedValidatesInput(t *testing.T) {
	svc := NewService(nil, &fakeDBTX{})

	assert.Error(t, svc.MarkViewed(context.Background(), "", "chan-1"))
	assert.Error(t, svc.MarkViewed(context.Background(), "wallet-1", "  "))
}

func TestLastViewedNeverViewed(t *testing.T) {
	svc := NewService(nil, &fakeDBTX{})

	lastViewed, ok, err := svc.LastViewed(context.Background(), "wallet-1", "chan-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, lastViewed.IsZero())
}

func TestLastViewedReturnsMarker(t *testing.T) {
	marker := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	db := &fakeDBTX{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &fakeRow{scanFunc: func(dest ...any) error {
				*dest[0].(*time.Time) = marker
				return nil
			}}
		},
	}
	svc := NewService(nil, db)

	lastViewed, ok, err := svc.LastViewed(context.Background(), "wallet-1", "chan-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, marker, lastViewed)
}
