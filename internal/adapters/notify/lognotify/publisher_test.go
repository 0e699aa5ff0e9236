package lognotify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPublish(t *testing.T) {
	Convey("Given a json logger", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithOptions(logger.WithFormat(logger.FormatJSON), logger.WithOutput(&buf)), ShouldBeNil)
		p := New(logger.Get())

		Convey("When a payload is published", func() {
			err := p.Publish(context.Background(), notify.Payload{
				ID:       "p-1",
				Type:     notify.TypeTalentPoolSummary,
				Audience: notify.Audience{Kind: notify.AudienceBrand, ID: "b-1"},
				Data:     map[string]any{notify.KeyTotal: 4},
			})
			So(err, ShouldBeNil)

			var line map[string]any
			So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
			So(line["msg"], ShouldEqual, "notification")
			So(line["payload_id"], ShouldEqual, "p-1")
			So(line["audience_kind"], ShouldEqual, "brand")
			So(line["component"], ShouldEqual, "notifications")
		})
	})
}
