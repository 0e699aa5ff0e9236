package redisnotify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/okian/maison/internal/domain/notify"
	. "github.com/smartystreets/goconvey/convey"
)

func TestChannel(t *testing.T) {
	Convey("Given publishers with and without a channel prefix", t, func() {
		So(New(nil).Channel(notify.AudienceBrand), ShouldEqual, "maison.notifications:brand")
		So(New(nil, WithChannel("alerts")).Channel(notify.AudienceTalent), ShouldEqual, "alerts:talent")
		So(New(nil, WithChannel("")).Channel(notify.AudienceGroup), ShouldEqual, "maison.notifications:group")
	})
}

func TestPublish(t *testing.T) {
	url := os.Getenv("MAISON_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MAISON_TEST_REDIS_URL not set")
	}

	Convey("Given a live redis", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := NewClient(ctx, url)
		So(err, ShouldBeNil)
		p := New(rdb, WithChannel("maison.test"))
		defer p.Close()

		sub := rdb.Subscribe(ctx, p.Channel(notify.AudienceProfile))
		defer sub.Close()
		_, err = sub.Receive(ctx)
		So(err, ShouldBeNil)

		Convey("When a payload is published", func() {
			sent := notify.Payload{
				ID:       "p-1",
				Type:     notify.TypeRequestDecision,
				Audience: notify.Audience{Kind: notify.AudienceProfile, ID: "u-1"},
				Data:     map[string]any{"status": "approved"},
			}
			So(p.Publish(ctx, sent), ShouldBeNil)

			msg, err := sub.ReceiveMessage(ctx)
			So(err, ShouldBeNil)
			var got notify.Payload
			So(json.Unmarshal([]byte(msg.Payload), &got), ShouldBeNil)
			So(got.ID, ShouldEqual, "p-1")
			So(got.Data["status"], ShouldEqual, "approved")
		})
	})
}
