package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mustafamuse/irshad-center-sub005/internal/client"
	"github.com/mustafamuse/irshad-center-sub005/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := client.InitSqliteClient(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	return db
}

func TestRecordPendingIsRaceSafe(t *testing.T) {
	repo := NewWebhookEventRepository(newTestDB(t))
	ctx := context.Background()

	ev := &model.WebhookEvent{
		EventID:   "evt_1",
		Source:    model.ProgramDugsi,
		EventType: model.EventCheckoutCompleted,
		Payload:   []byte(`{"id":"evt_1"}`),
	}
	require.NoError(t, repo.RecordPending(ctx, ev))

	// a second insert for the same (event_id, source) loses on the unique
	// index, no matter what any earlier read said
	dup := &model.WebhookEvent{EventID: "evt_1", Source: model.ProgramDugsi, EventType: ev.EventType}
	assert.ErrorIs(t, repo.RecordPending(ctx, dup), ErrEventAlreadyRecorded)

	// the same event id under another source is a different delivery stream
	other := &model.WebhookEvent{EventID: "evt_1", Source: model.ProgramMahad, EventType: ev.EventType}
	assert.NoError(t, repo.RecordPending(ctx, other))
}

func TestHasProcessedAndForget(t *testing.T) {
	repo := NewWebhookEventRepository(newTestDB(t))
	ctx := context.Background()

	processed, err := repo.HasProcessed(ctx, "evt_2", model.ProgramDugsi)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, repo.RecordPending(ctx, &model.WebhookEvent{
		EventID: "evt_2",
		Source:  model.ProgramDugsi,
	}))

	processed, err = repo.HasProcessed(ctx, "evt_2", model.ProgramDugsi)
	require.NoError(t, err)
	assert.True(t, processed)

	require.NoError(t, repo.Forget(ctx, "evt_2", model.ProgramDugsi))

	processed, err = repo.HasProcessed(ctx, "evt_2", model.ProgramDugsi)
	require.NoError(t, err)
	assert.False(t, processed)

	// forgetting an absent record is a no-op
	assert.NoError(t, repo.Forget(ctx, "evt_2", model.ProgramDugsi))
}

func TestListRecent(t *testing.T) {
	repo := NewWebhookEventRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordPending(ctx, &model.WebhookEvent{
			EventID: fmt.Sprintf("evt_%d", i),
			Source:  model.ProgramDugsi,
		}))
	}
	require.NoError(t, repo.RecordPending(ctx, &model.WebhookEvent{
		EventID: "evt_m",
		Source:  model.ProgramMahad,
	}))

	events, err := repo.ListRecent(ctx, model.ProgramDugsi, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	all, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	limited, err := repo.ListRecent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
