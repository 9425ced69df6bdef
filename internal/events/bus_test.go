package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[BuildFinished](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(t.Context(), BuildFinished{BuildID: "b1", Success: true}))

	select {
	case got := <-ch:
		assert.Equal(t, "b1", got.BuildID)
		assert.True(t, got.Success)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[BuildEvent](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(t.Context(), BuildStarted{BuildID: "s"}))
	require.NoError(t, b.Publish(t.Context(), ReloadSent{BuildID: "r"}))

	assert.Equal(t, "s", (<-ch).EventBuildID())
	assert.Equal(t, "r", (<-ch).EventBuildID())
}

func TestBus_OnlyMatchingTypesDelivered(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ReloadSent](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(t.Context(), BuildFinished{BuildID: "x"}))
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[BuildFinished](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, BuildFinished{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

func TestBus_UnsubscribeAndCount(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, u1 := Subscribe[BuildFinished](b, 1)
	_, u2 := Subscribe[BuildFinished](b, 1)
	assert.Equal(t, 2, SubscriberCount[BuildFinished](b))
	u1()
	u1()
	assert.Equal(t, 1, SubscriberCount[BuildFinished](b))
	u2()
	assert.Equal(t, 0, SubscriberCount[BuildFinished](b))
	assert.Equal(t, 0, SubscriberCount[BuildFinished](nil))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[BuildFinished](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Error(t, b.Publish(t.Context(), BuildFinished{}))

	late, _ := Subscribe[BuildFinished](b, 1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestBus_PublishNil(t *testing.T) {
	b := NewBus()
	defer b.Close()
	err := b.Publish(t.Context(), nil)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}
