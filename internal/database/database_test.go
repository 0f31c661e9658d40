package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSource(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, identifier, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "scheduled_sessions", identifier)

	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS scheduled_sessions")

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()

	_, err = src.Next(first)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "expected a single migration, got %v", err)
}

// fakeRow feeds fixed column values through the same Scan path database/sql
// uses for driver values.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}

	for i, d := range dest {
		switch d := d.(type) {
		case sql.Scanner:
			if err := d.Scan(r.values[i]); err != nil {
				return err
			}
		case *string:
			*d = r.values[i].(string)
		case *int:
			*d = int(r.values[i].(int64))
		case *time.Time:
			*d = r.values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}

	return nil
}

func TestScanSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	created := start.Add(-time.Hour)

	t.Run("full row", func(t *testing.T) {
		s, err := scanSession(fakeRow{values: []any{
			"0b6f6c1e-8d7c-4c33-9d1b-1f3c6f3c2a10", "Retro", "Sprint 12", start, int64(45), "room-abc",
			[]byte(`{"ann","bob"}`), created,
		}})

		require.NoError(t, err)
		assert.Equal(t, Session{
			Id:          "0b6f6c1e-8d7c-4c33-9d1b-1f3c6f3c2a10",
			Title:       "Retro",
			Description: "Sprint 12",
			StartTime:   start,
			Duration:    45,
			RoomId:      "room-abc",
			Attendees:   []string{"ann", "bob"},
			CreatedAt:   created,
		}, s)
	})

	t.Run("empty attendees", func(t *testing.T) {
		s, err := scanSession(fakeRow{values: []any{
			"id", "Standup", "", start, int64(15), "room-xyz", []byte(`{}`), created,
		}})

		require.NoError(t, err)
		assert.NotNil(t, s.Attendees, "expected an empty, non-nil attendee list")
		assert.Empty(t, s.Attendees)
	})

	t.Run("scan error", func(t *testing.T) {
		_, err := scanSession(fakeRow{err: sql.ErrNoRows})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
