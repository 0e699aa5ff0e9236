package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/maison/internal/domain/notify"
	. "github.com/smartystreets/goconvey/convey"
)

func item(id string) Item {
	return notify.Payload{ID: id, Type: notify.TypeRequestDecision}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(), ShouldEqual, 0)

		Convey("When items are enqueued past capacity", func() {
			So(q.Enqueue(ctx, item("p-1")), ShouldBeTrue)
			So(q.Enqueue(ctx, item("p-2")), ShouldBeTrue)
			So(q.Enqueue(ctx, item("p-3")), ShouldBeFalse)
			So(q.Len(), ShouldEqual, 2)

			Convey("Then they come out in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).ID, ShouldEqual, "p-1")
				So((<-ch).ID, ShouldEqual, "p-2")
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, item("p-1")), ShouldBeFalse)
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, item("p-1")), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, item("p-2")), ShouldBeFalse)
			So(q.Close(), ShouldBeNil)

			Convey("Then queued items drain before the channel closes", func() {
				ch := q.Dequeue(ctx)
				first, ok := <-ch
				So(ok, ShouldBeTrue)
				So(first.ID, ShouldEqual, "p-1")

				select {
				case _, ok := <-ch:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					So("dequeue channel still open", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestInMemoryQueueConcurrentAccess(t *testing.T) {
	Convey("Given producers and consumers sharing a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewInMemoryQueue(WithCapacity(50))
		const producers, perProducer = 8, 100

		var (
			mu   sync.Mutex
			seen = make(map[string]int)
			got  sync.WaitGroup
		)
		got.Add(producers * perProducer)
		for i := 0; i < 4; i++ {
			go func() {
				for it := range q.Dequeue(ctx) {
					mu.Lock()
					seen[it.ID]++
					mu.Unlock()
					got.Done()
				}
			}()
		}

		var sent sync.WaitGroup
		for p := 0; p < producers; p++ {
			sent.Add(1)
			go func(p int) {
				defer sent.Done()
				for j := 0; j < perProducer; j++ {
					for !q.Enqueue(ctx, item(fmt.Sprintf("p-%d-%d", p, j))) {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		sent.Wait()
		got.Wait()

		So(len(seen), ShouldEqual, producers*perProducer)
		for _, n := range seen {
			So(n, ShouldEqual, 1)
		}
	})
}
