package notification

import (
	"context"
	"testing"

	"multiproduct/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndListUnreadFirst(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "n@x.com", true)

	first, err := svc.Create(ctx, user.ID, nil, "one", "first", map[string]any{"kind": "subscription.renewed"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, nil, "two", "second", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, nil, "three", "third", nil)
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, user.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.MarkRead(ctx, user.ID, first.ID)
	require.NoError(t, err, "marking twice is fine")

	items, total, err := svc.List(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "three", items[0].Title)
	assert.Equal(t, "two", items[1].Title)
	assert.Equal(t, "one", items[2].Title)
	assert.Equal(t, "subscription.renewed", items[2].Data["kind"])

	unread, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)
}

func TestMarkReadOtherUsersNotification(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner@x.com", true)
	other := testutil.CreateUser(t, db, "other@x.com", true)

	n, err := svc.Create(ctx, owner.ID, nil, "hi", "hello", nil)
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, other.ID, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "p@x.com", true)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, user.ID, nil, "t", "m", nil)
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, user.ID, 3, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, items, 1)
}
