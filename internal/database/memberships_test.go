package database

import (
	"context"
	"sync"
	"testing"

	"voyago/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m := &models.Membership{TourID: 5, UserID: 100, Message: "hi"}
	require.NoError(t, db.CreateMembership(ctx, m))
	require.NotZero(t, m.ID)
	assert.Equal(t, models.MemberPending, m.Status)

	t.Run("DuplicateRequest", func(t *testing.T) {
		err := db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: 100})
		assert.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("Approve", func(t *testing.T) {
		require.NoError(t, db.ApproveMembership(ctx, 5, 100, 3))

		got, err := db.GetMembership(ctx, 5, 100)
		require.NoError(t, err)
		assert.Equal(t, models.MemberApproved, got.Status)
		require.NotNil(t, got.DecidedAt)

		n, err := db.ApprovedMemberCount(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ApproveTwice", func(t *testing.T) {
		err := db.ApproveMembership(ctx, 5, 100, 3)
		assert.ErrorIs(t, err, ErrMembershipDecided)
	})

	t.Run("Reject", func(t *testing.T) {
		require.NoError(t, db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: 101}))
		require.NoError(t, db.RejectMembership(ctx, 5, 101))

		got, err := db.GetMembership(ctx, 5, 101)
		require.NoError(t, err)
		assert.Equal(t, models.MemberRejected, got.Status)

		// Rejected members hold no slot
		n, err := db.ApprovedMemberCount(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("LeaveFreesSlot", func(t *testing.T) {
		require.NoError(t, db.DeleteMembership(ctx, 5, 100))

		n, err := db.ApprovedMemberCount(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		assert.ErrorIs(t, db.DeleteMembership(ctx, 5, 100), ErrMembershipNotFound)
	})

	t.Run("UnknownMembership", func(t *testing.T) {
		_, err := db.GetMembership(ctx, 5, 999)
		assert.ErrorIs(t, err, ErrMembershipNotFound)
	})
}

func TestApproveFullGroup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, userID := range []int64{100, 101, 102, 103} {
		require.NoError(t, db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: userID}))
	}
	for _, userID := range []int64{100, 101, 102} {
		require.NoError(t, db.ApproveMembership(ctx, 5, userID, 3))
	}

	err := db.ApproveMembership(ctx, 5, 103, 3)
	assert.ErrorIs(t, err, ErrGroupFull)

	got, err := db.GetMembership(ctx, 5, 103)
	require.NoError(t, err)
	assert.Equal(t, models.MemberPending, got.Status)
}

func TestRejectApprovedMemberFreesSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, userID := range []int64{100, 101, 102, 103} {
		require.NoError(t, db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: userID}))
	}
	for _, userID := range []int64{100, 101, 102} {
		require.NoError(t, db.ApproveMembership(ctx, 5, userID, 3))
	}
	require.ErrorIs(t, db.ApproveMembership(ctx, 5, 103, 3), ErrGroupFull)

	// The host removes an approved member; exactly one slot opens up.
	require.NoError(t, db.RejectMembership(ctx, 5, 101))

	got, err := db.GetMembership(ctx, 5, 101)
	require.NoError(t, err)
	assert.Equal(t, models.MemberRejected, got.Status)

	n, err := db.ApprovedMemberCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.ErrorIs(t, db.RejectMembership(ctx, 5, 101), ErrMembershipDecided)

	require.NoError(t, db.ApproveMembership(ctx, 5, 103, 3))
	n, err = db.ApprovedMemberCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestConcurrentApproveLastSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Two of three slots already taken; ten pending requests race for the last one.
	for _, userID := range []int64{1, 2} {
		require.NoError(t, db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: userID}))
		require.NoError(t, db.ApproveMembership(ctx, 5, userID, 3))
	}

	const contenders = 10
	for i := int64(0); i < contenders; i++ {
		require.NoError(t, db.CreateMembership(ctx, &models.Membership{TourID: 5, UserID: 100 + i}))
	}

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := int64(0); i < contenders; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			results <- db.ApproveMembership(ctx, 5, userID, 3)
		}(100 + i)
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrGroupFull)
		}
	}
	assert.Equal(t, 1, wins)

	n, err := db.ApprovedMemberCount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
