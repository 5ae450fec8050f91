package database

import (
	"context"
	"testing"
	"time"

	"voyago/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  "upsert",
		BookingID: 7,
		Payload:   `{"booking_id":7}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NotZero(t, task.ID)

	t.Run("PendingIsVisible", func(t *testing.T) {
		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, task.ID, tasks[0].ID)
		assert.Equal(t, `{"booking_id":7}`, tasks[0].Payload)
	})

	t.Run("RetryNotDueIsHidden", func(t *testing.T) {
		require.NoError(t, db.MarkSyncTaskRetry(ctx, task.ID, 1, "boom", time.Now().Add(time.Hour)))

		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("RetryDueIsVisible", func(t *testing.T) {
		require.NoError(t, db.MarkSyncTaskRetry(ctx, task.ID, 2, "boom again", time.Now().Add(-time.Minute)))

		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, 2, tasks[0].RetryCount)
		assert.Equal(t, "boom again", tasks[0].LastError)
	})

	t.Run("DoneIsHidden", func(t *testing.T) {
		require.NoError(t, db.MarkSyncTaskDone(ctx, task.ID))

		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("DeadIsHidden", func(t *testing.T) {
		dead := &models.SyncTask{TaskType: "delete", BookingID: 8, Status: "pending"}
		require.NoError(t, db.CreateSyncTask(ctx, dead))
		require.NoError(t, db.MarkSyncTaskDead(ctx, dead.ID, "gave up"))

		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestGetPendingSyncTasksLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{
			TaskType: "upsert", BookingID: i, Status: "pending",
		}))
	}

	tasks, err := db.GetPendingSyncTasks(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}
