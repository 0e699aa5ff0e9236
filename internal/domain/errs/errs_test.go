package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/maison/internal/domain/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKinds(t *testing.T) {
	Convey("Given classified errors", t, func() {
		cause := errors.New("row locked")

		Convey("When wrapping a cause with a kind", func() {
			err := errs.WrapKind("teamrequest.approve", errs.ErrConflict, cause)

			Convey("Then both the kind and the cause match", func() {
				So(errors.Is(err, errs.ErrConflict), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
				So(errors.Is(err, errs.ErrForbidden), ShouldBeFalse)
				So(err.Error(), ShouldEqual, "teamrequest.approve: conflict: row locked")
			})

			Convey("And KindOf survives further wrapping", func() {
				wrapped := fmt.Errorf("handler: %w", err)
				So(errs.KindOf(wrapped), ShouldEqual, errs.ErrConflict)
			})
		})

		Convey("When creating a bare kind", func() {
			err := errs.NewKind("teamrequest.reject", errs.ErrForbidden)

			Convey("Then it reads as op and kind", func() {
				So(err.Error(), ShouldEqual, "teamrequest.reject: forbidden")
				So(errs.KindOf(err), ShouldEqual, errs.ErrForbidden)
			})
		})

		Convey("When creating a validation error", func() {
			err := errs.Validation("teamrequest.reject", "reason is required")

			Convey("Then the message is the user-facing text", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(errs.Message(err), ShouldEqual, "reason is required")
			})
		})

		Convey("When the error is not classified", func() {
			So(errs.KindOf(cause), ShouldBeNil)
			So(errs.KindOf(nil), ShouldBeNil)
			So(errs.Message(cause), ShouldEqual, "row locked")
			So(errs.Message(nil), ShouldEqual, "")
		})

		Convey("When formatting a validation message", func() {
			err := errs.Validationf("normalize.talent", "unknown role level %q", "L9")
			So(errs.Message(err), ShouldEqual, `unknown role level "L9"`)
		})
	})
}
