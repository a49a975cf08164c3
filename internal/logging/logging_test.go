package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/glowsync/glowsync-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return f }
func (f failingHandler) WithGroup(string) slog.Handler           { return f }

func TestMultiHandler_FansOutPastFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMultiHandler(failingHandler{}, NewJSONHandler(&buf, "warn")))

	logger.Info("dropped by level")
	logger.With("room_id", "r1").Warn("kept")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "r1", line["room_id"])
}

func TestDBHandler_PersistsErrorsWithKnownAttrs(t *testing.T) {
	db := testutil.NewDB(t)
	h := newDBHandler(db, 2, time.Hour)

	identityID := uuid.NewString()
	logger := slog.New(h).With("request_id", "req-1")

	logger.Warn("below threshold")
	logger.Error("relay failed",
		"identity_id", identityID,
		"room_id", "a-b",
		"action", "relay",
		"error", "buffer full",
		"attempt", 3,
	)
	h.Stop()

	var rows []models.SystemLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "ERROR", row.Level)
	assert.Equal(t, "relay failed", row.Message)
	assert.Equal(t, "req-1", row.RequestID)
	require.NotNil(t, row.IdentityID)
	assert.Equal(t, identityID, *row.IdentityID)
	assert.Equal(t, "a-b", row.RoomID)
	assert.Equal(t, "relay", row.Action)
	assert.Equal(t, "buffer full", row.Error)
	assert.JSONEq(t, `{"attempt":3}`, string(row.Extra))
}

func TestDBHandler_FlushesWhenBatchFills(t *testing.T) {
	db := testutil.NewDB(t)
	h := newDBHandler(db, 2, time.Hour)
	t.Cleanup(h.Stop)

	logger := slog.New(h)
	logger.Error("one")
	logger.Error("two")

	require.Eventually(t, func() bool {
		var n int64
		db.Model(&models.SystemLog{}).Count(&n)
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetention_Sweep(t *testing.T) {
	db := testutil.NewDB(t)
	clock := testutil.NewClock()

	old := models.SystemLog{ID: uuid.New(), Timestamp: clock.Now().Add(-31 * 24 * time.Hour), Level: "ERROR"}
	fresh := models.SystemLog{ID: uuid.New(), Timestamp: clock.Now().Add(-time.Hour), Level: "ERROR"}
	require.NoError(t, db.Create(&[]models.SystemLog{old, fresh}).Error)

	r := NewRetention(db, 30*24*time.Hour)
	r.now = clock.Now

	deleted, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var left []models.SystemLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].ID)
}

func TestRetention_RunStopsOnCancel(t *testing.T) {
	r := NewRetention(testutil.NewDB(t), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention loop did not stop")
	}
}
