package emitter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	emitter "github.com/komparedocers/autonomous-lead-qualification/internal/adapters/emitter"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func testSignal(id string) *model.Signal {
	return &model.Signal{
		ID:        id,
		CompanyID: "acme",
		Kind:      model.KindHiringSpike,
		Score:     85,
		TSStart:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryEmitter(t *testing.T) {
	Convey("Given an in-memory emitter", t, func() {
		e := emitter.NewInMemoryEmitter()
		ctx := context.Background()

		Convey("When publishing a signal", func() {
			So(e.Publish(ctx, testSignal("sig-1")), ShouldBeNil)

			Convey("Then it is recorded once", func() {
				So(e.Emitted(), ShouldHaveLength, 1)
				got, ok := e.Get("sig-1")
				So(ok, ShouldBeTrue)
				So(got.CompanyID, ShouldEqual, "acme")
			})
		})

		Convey("When re-publishing the same id", func() {
			So(e.Publish(ctx, testSignal("sig-1")), ShouldBeNil)
			updated := testSignal("sig-1")
			updated.Score = 92
			So(e.Publish(ctx, updated), ShouldBeNil)

			Convey("Then the emission overwrites instead of duplicating", func() {
				So(e.Emitted(), ShouldHaveLength, 1)
				got, _ := e.Get("sig-1")
				So(got.Score, ShouldEqual, 92)
			})
		})

		Convey("When publishing an invalid signal", func() {
			So(e.Publish(ctx, nil), ShouldEqual, emitter.ErrInvalidSignal)
			So(e.Publish(ctx, &model.Signal{}), ShouldEqual, emitter.ErrInvalidSignal)
		})
	})
}

// flaky is an emitter that fails a configured number of times before
// succeeding.
type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Publish(_ context.Context, _ *model.Signal) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

func (f *flaky) Close() error { return nil }

func TestRetryingEmitter(t *testing.T) {
	Convey("Given a retrying emitter over a flaky transport", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		backoff := emitter.WithBackoff(time.Millisecond, 5*time.Millisecond)

		Convey("When the transport recovers within the attempt budget", func() {
			next := &flaky{failures: 2}
			r := emitter.NewRetryingEmitter(next, logger.Get(), emitter.WithMaxAttempts(3), backoff)
			err := r.Publish(ctx, testSignal("sig-1"))

			Convey("Then the publish eventually succeeds", func() {
				So(err, ShouldBeNil)
				So(next.calls, ShouldEqual, 3)
			})
		})

		Convey("When the transport never recovers", func() {
			next := &flaky{failures: 10}
			r := emitter.NewRetryingEmitter(next, logger.Get(), emitter.WithMaxAttempts(3), backoff)
			err := r.Publish(ctx, testSignal("sig-1"))

			Convey("Then the attempt budget is exhausted with a wrapped error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, emitter.ErrPublishFailed), ShouldBeTrue)
				So(next.calls, ShouldEqual, 3)
			})
		})

		Convey("When the transport is healthy", func() {
			next := &flaky{}
			r := emitter.NewRetryingEmitter(next, logger.Get(), backoff)
			err := r.Publish(ctx, testSignal("sig-1"))

			Convey("Then exactly one attempt is made", func() {
				So(err, ShouldBeNil)
				So(next.calls, ShouldEqual, 1)
			})
		})

		Convey("When the context is cancelled mid-backoff", func() {
			next := &flaky{failures: 10}
			r := emitter.NewRetryingEmitter(next, logger.Get(),
				emitter.WithMaxAttempts(5), emitter.WithBackoff(time.Second, time.Second))
			cancelCtx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			err := r.Publish(cancelCtx, testSignal("sig-1"))

			Convey("Then the publish aborts with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
