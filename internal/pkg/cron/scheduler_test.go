package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunOnce_ReturnsFirstFailure(t *testing.T) {
	s := NewScheduler(clock.NewMock(), 0)
	var ran int32
	s.AddJob("ok", time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	s.AddJob("failing", time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return errors.New("boom")
	})

	err := s.RunOnce(context.Background())

	assert.EqualError(t, err, "boom")
	assert.EqualValues(t, 2, atomic.LoadInt32(&ran))
}

func TestScheduler_RunOnce_RecoversPanics(t *testing.T) {
	s := NewScheduler(clock.NewMock(), 0)
	s.AddJob("panicking", time.Minute, func(ctx context.Context) error {
		panic("bad record")
	})

	err := s.RunOnce(context.Background())

	assert.ErrorContains(t, err, "panicked")
}

func TestScheduler_RunOnce_AppliesTimeout(t *testing.T) {
	s := NewScheduler(clock.New(), 10*time.Millisecond)
	s.AddJob("slow", time.Minute, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := s.RunOnce(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_RunsOnStartAndOnEveryTick(t *testing.T) {
	mock := clock.NewMock()
	s := NewScheduler(mock, 0)
	var runs int32
	s.AddJob("tick", time.Minute, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, time.Millisecond)

	mock.Add(time.Minute)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, time.Millisecond)

	s.Stop()
}
