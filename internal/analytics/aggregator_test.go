package analytics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregators() (*analytics.SessionAggregator, *analytics.UserAggregator) {
	return analytics.NewSessionAggregator(newMapRepo[analytics.Session]()),
		analytics.NewUserAggregator(newMapRepo[analytics.User]())
}

type updater interface {
	Update(ctx context.Context, event *analytics.Event) error
}

func feed(t *testing.T, events []*analytics.Event, aggs ...updater) {
	t.Helper()

	for _, e := range events {
		for _, agg := range aggs {
			require.NoError(t, agg.Update(context.Background(), e))
		}
	}
}

func TestAggregators_Rollup(t *testing.T) {
	ctx := context.Background()
	sessions, users := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "s1", UserID: "u1", EventType: "page_load", Timestamp: 1000, IP: "10.0.0.1"},
		{SessionID: "s1", UserID: "u1", EventType: "click", Timestamp: 2000},
		{SessionID: "s2", UserID: "u1", EventType: "page_load", Timestamp: 3000},
	}, sessions, users)

	s1, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s1.StartTime)
	assert.Equal(t, int64(2000), s1.LastActivity)
	assert.Equal(t, int64(1000), s1.Duration)
	assert.Equal(t, 2, s1.Events)
	assert.Equal(t, 1, s1.PageViews)
	assert.Equal(t, "u1", s1.UserID)
	assert.Equal(t, "10.0.0.1", s1.IP)

	s2, err := sessions.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Events)
	assert.Equal(t, 1, s2.PageViews)

	u1, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), u1.FirstSeen)
	assert.Equal(t, int64(3000), u1.LastSeen)
	assert.Equal(t, []string{"s1", "s2"}, u1.Sessions)
	assert.Equal(t, 3, u1.TotalEvents)
	assert.Equal(t, 2, u1.PageViews)
}

func TestAggregators_SessionSetIsUnique(t *testing.T) {
	ctx := context.Background()
	_, users := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "s1", UserID: "u1", Timestamp: 1},
		{SessionID: "s1", UserID: "u1", Timestamp: 2},
		{SessionID: "", UserID: "u1", Timestamp: 3},
		{SessionID: "s2", UserID: "u1", Timestamp: 4},
		{SessionID: "s1", UserID: "u1", Timestamp: 5},
	}, users)

	u1, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, u1.Sessions)
	assert.Equal(t, 5, u1.TotalEvents)
}

func TestAggregators_OutOfOrderTimestamps(t *testing.T) {
	ctx := context.Background()
	sessions, users := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "s1", UserID: "u1", Timestamp: 5000},
		{SessionID: "s1", UserID: "u1", Timestamp: 3000},
	}, sessions, users)

	s1, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), s1.StartTime)
	assert.Equal(t, int64(5000), s1.LastActivity)
	assert.Zero(t, s1.Duration)

	u1, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), u1.FirstSeen)
	assert.Equal(t, int64(5000), u1.LastSeen)
}

func TestAggregators_FirstEventFixesIdentity(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "s1", UserID: "u1", Timestamp: 1, UserAgent: "first", DeviceInfo: analytics.DeviceInfo{"windowWidth": 1200.0}},
		{SessionID: "s1", UserID: "u2", Timestamp: 2, UserAgent: "second", DeviceInfo: analytics.DeviceInfo{"windowWidth": 300.0}},
	}, sessions)

	s1, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s1.UserID)
	assert.Equal(t, "first", s1.UserAgent)
	assert.InDelta(t, 1200.0, s1.DeviceInfo["windowWidth"], 0)
}

func TestAggregator_Update(t *testing.T) {
	t.Run("ignores events without a key", func(t *testing.T) {
		ctx := context.Background()
		sessions, users := newAggregators()

		feed(t, []*analytics.Event{{EventType: "click", Timestamp: 1}}, sessions, users)

		all, err := sessions.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		allUsers, err := users.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, allUsers)
	})

	t.Run("wraps repository load errors", func(t *testing.T) {
		repo := newMapRepo[analytics.Session]()
		repo.getErr = errors.New("connection reset")
		sessions := analytics.NewSessionAggregator(repo)

		err := sessions.Update(context.Background(), &analytics.Event{SessionID: "s1"})

		require.ErrorIs(t, err, analytics.ErrStorage)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("wraps repository save errors", func(t *testing.T) {
		repo := newMapRepo[analytics.User]()
		repo.putErr = errors.New("disk full")
		users := analytics.NewUserAggregator(repo)

		err := users.Update(context.Background(), &analytics.Event{UserID: "u1"})

		require.ErrorIs(t, err, analytics.ErrStorage)
	})
}

func TestAggregator_Get(t *testing.T) {
	t.Run("returns not found for unknown key", func(t *testing.T) {
		sessions, _ := newAggregators()

		_, err := sessions.Get(context.Background(), "missing")

		require.ErrorIs(t, err, analytics.ErrNotFound)
	})

	t.Run("returns a copy", func(t *testing.T) {
		ctx := context.Background()
		_, users := newAggregators()
		feed(t, []*analytics.Event{{UserID: "u1", SessionID: "s1", Timestamp: 1}}, users)

		u1, err := users.Get(ctx, "u1")
		require.NoError(t, err)

		u1.Sessions[0] = "tampered"
		u1.TotalEvents = 99

		again, err := users.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, again.Sessions)
		assert.Equal(t, 1, again.TotalEvents)
	})
}

func TestAggregator_List(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "c", Timestamp: 300},
		{SessionID: "b", Timestamp: 100},
		{SessionID: "a", Timestamp: 100},
	}, sessions)

	all, err := sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].SessionID)
	assert.Equal(t, "b", all[1].SessionID)
	assert.Equal(t, "c", all[2].SessionID)
}

func TestAggregator_PruneIdle(t *testing.T) {
	ctx := context.Background()
	sessions, users := newAggregators()

	feed(t, []*analytics.Event{
		{SessionID: "old", UserID: "u-old", Timestamp: 100},
		{SessionID: "new", UserID: "u-new", Timestamp: 5000},
	}, sessions, users)

	removed, err := sessions.PruneIdle(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = sessions.Get(ctx, "old")
	require.ErrorIs(t, err, analytics.ErrNotFound)

	_, err = sessions.Get(ctx, "new")
	require.NoError(t, err)

	removed, err = users.PruneIdle(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "user", users.Name())
	assert.Equal(t, "session", sessions.Name())
}
