package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/GTLTrack/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGetRemove(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "GTL1")
	require.NoError(t, err)
	require.False(t, ok)

	rec := models.ShipmentRecord{LR: "GTL1", Status: models.ShipmentStatusPending, Route: "Vapi to Pune", Date: "2025-01-02"}
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err := s.Get(ctx, "GTL1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, *got)

	// last write wins
	rec.Status = models.ShipmentStatusDelivered
	require.NoError(t, s.Put(ctx, rec))
	got, _, err = s.Get(ctx, "GTL1")
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, got.Status)

	require.NoError(t, s.Remove(ctx, "GTL1"))
	require.NoError(t, s.Remove(ctx, "GTL1"))
	_, ok, err = s.Get(ctx, "GTL1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_All_SkipsGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.ShipmentRecord{LR: "A1", Status: models.ShipmentStatusInTransit}))
	require.NoError(t, s.Put(ctx, models.ShipmentRecord{LR: "B2", Status: "Lost"}))
	mr.HSet(shipmentsKey, "C3", "not-json")

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Lost", all["B2"].Status)
}

func TestStore_Get_BadJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())
	mr.HSet(shipmentsKey, "X1", "{")

	_, _, err := s.Get(context.Background(), "X1")
	require.Error(t, err)
}

func TestStore_Watch(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), models.ShipmentRecord{LR: "W1"}))

	select {
	case lr := <-ch:
		require.Equal(t, "W1", lr)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// a late notification may still be buffered; the channel must close after it
			_, ok = <-ch
		}
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed")
	}
}

func TestStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())
	mr.Close()

	_, _, err := s.Get(context.Background(), "A1")
	require.Error(t, err)
	require.Error(t, s.Put(context.Background(), models.ShipmentRecord{LR: "A1"}))
	_, err = s.All(context.Background())
	require.Error(t, err)
}
