package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/maison/internal/adapters/mq/queue"
	"github.com/okian/maison/internal/adapters/mq/worker"
	"github.com/okian/maison/internal/domain/dedupe"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/notify"
	. "github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	items chan notify.Payload
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan notify.Payload, 16)}
}

func (q *mockQueue) Dequeue(context.Context) <-chan notify.Payload { return q.items }

func (q *mockQueue) Close() error {
	close(q.items)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	failing   map[string]int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{failing: make(map[string]int)}
}

func (p *recordingPublisher) Publish(_ context.Context, payload notify.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.failing[payload.ID]; n > 0 {
		p.failing[payload.ID] = n - 1
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, payload.ID)
	return nil
}

func (p *recordingPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

func payload(id string) notify.Payload {
	return notify.Payload{ID: id, Type: notify.TypeRequestDecision, Audience: notify.Audience{Kind: notify.AudienceProfile, ID: "u-1"}}
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker with a deduper", t, func() {
		ctx := context.Background()
		q := newMockQueue()
		pub := newRecordingPublisher()
		d := dedupe.NewInMemoryDeduper()
		w := worker.NewInMemoryWorker(q, pub, d, worker.WithName("test-worker"))

		Convey("When the same payload arrives twice", func() {
			q.items <- payload("p-1")
			q.items <- payload("p-1")
			q.items <- payload("p-2")
			So(q.Close(), ShouldBeNil)
			w.Run(ctx)

			So(pub.ids(), ShouldResemble, []string{"p-1", "p-2"})
			So(d.Size(), ShouldEqual, 2)
		})

		Convey("When the same match is projected twice", func() {
			p := notify.NewProjector()
			talent := model.TalentProfile{ID: "t-1", TargetBrands: []string{"cartier"}}
			opp := model.OpportunityProfile{ID: "o-1", BrandID: "b-1", BrandKey: "cartier"}
			res := model.MatchResult{TalentID: "t-1", OpportunityID: "o-1", OverallScore: 90, DreamBrandRank: 1}
			first, ok := p.DreamBrandAlert(talent, opp, res)
			So(ok, ShouldBeTrue)
			second, _ := p.DreamBrandAlert(talent, opp, res)
			q.items <- first
			q.items <- second
			So(q.Close(), ShouldBeNil)
			w.Run(ctx)

			So(pub.ids(), ShouldResemble, []string{first.ID})
		})

		Convey("When publishing fails once", func() {
			pub.failing["p-1"] = 1
			q.items <- payload("p-1")
			q.items <- payload("p-1")
			So(q.Close(), ShouldBeNil)
			w.Run(ctx)

			So(pub.ids(), ShouldResemble, []string{"p-1"})
		})

		Convey("When the worker is shut down while idle", func() {
			go w.Run(ctx)
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			So(w.Shutdown(sctx), ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a real queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		pub := newRecordingPublisher()
		pool := worker.NewPool(4, q, pub, dedupe.NewInMemoryDeduper())
		So(pool.Size(), ShouldEqual, 4)
		pool.Start(ctx)

		for i := 0; i < 100; i++ {
			So(q.Enqueue(ctx, payload(fmt.Sprintf("p-%d", i))), ShouldBeTrue)
		}

		Convey("When the pool shuts down", func() {
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then every queued payload was published once", func() {
				ids := pub.ids()
				So(len(ids), ShouldEqual, 100)
				So(pool.Processed(), ShouldEqual, 100)
				seen := make(map[string]bool)
				for _, id := range ids {
					So(seen[id], ShouldBeFalse)
					seen[id] = true
				}
			})
		})
	})
}
