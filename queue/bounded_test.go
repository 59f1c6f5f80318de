package queue

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/rover/logging"
)

func TestNewBoundedValidatesCapacity(t *testing.T) {
	_, err := NewBounded[int]("ranging", 0, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "capacity must be positive")

	q, err := NewBounded[int]("ranging", 10, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q.Cap(), test.ShouldEqual, 10)
	test.That(t, q.Len(), test.ShouldEqual, 0)
	test.That(t, q.Name(), test.ShouldEqual, "ranging")
}

func TestFullQueueDropsNewest(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	q, err := NewBounded[string]("odometry", 2, clock.NewMock(), logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, q.TrySend("first"), test.ShouldBeTrue)
	test.That(t, q.TrySend("second"), test.ShouldBeTrue)
	test.That(t, q.TrySend("third"), test.ShouldBeFalse)
	test.That(t, q.Len(), test.ShouldEqual, 2)
	test.That(t, q.Dropped(), test.ShouldEqual, uint64(1))

	ctx := context.Background()
	item, ok := q.Receive(ctx, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, item, test.ShouldEqual, "first")
	item, ok = q.Receive(ctx, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, item, test.ShouldEqual, "second")
	_, ok = q.Receive(ctx, 0)
	test.That(t, ok, test.ShouldBeFalse)

	warnings := logs.FilterMessage("channel full, dropping newest").All()
	test.That(t, len(warnings), test.ShouldEqual, 1)
	test.That(t, warnings[0].ContextMap()["queue"], test.ShouldEqual, "odometry")
}

func TestDropWarningsAreRateLimited(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mock := clock.NewMock()
	q, err := NewBounded[int]("ranging", 1, mock, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, q.TrySend(0), test.ShouldBeTrue)
	for i := 1; i <= 5; i++ {
		test.That(t, q.TrySend(i), test.ShouldBeFalse)
	}
	test.That(t, q.Dropped(), test.ShouldEqual, uint64(5))
	test.That(t, logs.FilterMessage("channel full, dropping newest").Len(), test.ShouldEqual, 1)

	mock.Add(2 * dropWarningInterval)
	test.That(t, q.TrySend(6), test.ShouldBeFalse)
	test.That(t, logs.FilterMessage("channel full, dropping newest").Len(), test.ShouldEqual, 2)
}

func TestSendTimesOutOnFullQueue(t *testing.T) {
	q, err := NewBounded[int]("ranging", 1, clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ctx := context.Background()

	test.That(t, q.Send(ctx, 1, 10*time.Millisecond), test.ShouldBeTrue)
	start := time.Now()
	test.That(t, q.Send(ctx, 2, 10*time.Millisecond), test.ShouldBeFalse)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 10*time.Millisecond)
	test.That(t, q.Dropped(), test.ShouldEqual, uint64(1))

	item, ok := q.Receive(ctx, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, item, test.ShouldEqual, 1)
}

func TestSendWaitsForRoom(t *testing.T) {
	q, err := NewBounded[int]("ranging", 1, clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ctx := context.Background()
	test.That(t, q.TrySend(1), test.ShouldBeTrue)

	received := make(chan int, 2)
	go func() {
		for i := 0; i < 2; i++ {
			item, ok := q.Receive(ctx, time.Second)
			if ok {
				received <- item
			}
		}
	}()

	test.That(t, q.Send(ctx, 2, time.Second), test.ShouldBeTrue)
	test.That(t, <-received, test.ShouldEqual, 1)
	test.That(t, <-received, test.ShouldEqual, 2)
	test.That(t, q.Dropped(), test.ShouldEqual, uint64(0))
}

func TestSendAndReceiveObserveContext(t *testing.T) {
	q, err := NewBounded[int]("ranging", 1, clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Receive(ctx, time.Hour)
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, q.TrySend(1), test.ShouldBeTrue)
	test.That(t, q.Send(ctx, 2, time.Hour), test.ShouldBeFalse)
	test.That(t, q.Dropped(), test.ShouldEqual, uint64(0))
}

func TestReceiveTimesOutWhenEmpty(t *testing.T) {
	q, err := NewBounded[int]("odometry", 5, clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	start := time.Now()
	_, ok := q.Receive(context.Background(), 10*time.Millisecond)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 10*time.Millisecond)
}
