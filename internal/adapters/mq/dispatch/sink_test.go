package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/maison/internal/adapters/mq/dispatch"
	"github.com/okian/maison/internal/adapters/mq/queue"
	"github.com/okian/maison/internal/domain/notify"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSink(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sink over a queue of one", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		s := dispatch.NewSink(q, nil)
		ok := notify.Payload{ID: "p-1", Audience: notify.Audience{Kind: notify.AudienceBrand, ID: "b-1"}, Data: map[string]any{notify.KeyTotal: 3}}

		Convey("When payloads exceed the capacity", func() {
			So(s.Emit(ctx, ok), ShouldBeNil)
			ok.ID = "p-2"
			So(errors.Is(s.Emit(ctx, ok), dispatch.ErrBackpressure), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 1)
		})

		Convey("When a brand payload leaks a talent field", func() {
			bad := ok
			bad.Data = map[string]any{"talent_id": "t-1"}
			So(errors.Is(s.Emit(ctx, bad), notify.ErrPrivacyViolation), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("When the caller's context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(s.Emit(cctx, ok), ShouldBeNil)
			So(q.Len(), ShouldEqual, 1)
		})
	})
}
