package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRestarterStartsBackendWhenSessionEmpties(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts atomic.Int32
	r := newRestarter(ctx, func(context.Context) error {
		starts.Add(1)
		return nil
	}, &backoff.ZeroBackOff{}, zap.NewNop().Sugar())

	r.OnSessionEmpty()
	assert.Eventually(t, func() bool { return starts.Load() == 1 }, time.Second, 5*time.Millisecond)

	r.OnSessionEmpty()
	assert.Eventually(t, func() bool { return starts.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRestarterRetriesFailedLaunches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts atomic.Int32
	r := newRestarter(ctx, func(context.Context) error {
		if starts.Add(1) < 3 {
			return errors.New("exec: not found")
		}
		return nil
	}, &backoff.ZeroBackOff{}, zap.NewNop().Sugar())

	r.OnSessionEmpty()
	assert.Eventually(t, func() bool { return starts.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), starts.Load())
}

func TestRestarterGivesUpWhenBackoffStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts atomic.Int32
	r := newRestarter(ctx, func(context.Context) error {
		starts.Add(1)
		return nil
	}, &backoff.StopBackOff{}, zap.NewNop().Sugar())

	r.OnSessionEmpty()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, starts.Load())
}

func TestRestarterResetsOnMaster(t *testing.T) {
	wait := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	r := newRestarter(context.Background(), func(context.Context) error { return nil }, wait, zap.NewNop().Sugar())

	assert.Equal(t, time.Duration(0), r.next())
	assert.Equal(t, backoff.Stop, r.next())

	r.OnConnected("host/1/main", false)
	assert.Equal(t, backoff.Stop, r.next())

	r.OnConnected("host/1/main", true)
	assert.Equal(t, time.Duration(0), r.next())
}
