package model_test

import (
	"testing"

	model "github.com/okian/coffeematch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestHistoryRecord(t *testing.T) {
	convey.Convey("Given a history record between 1 and 2", t, func() {
		rec := model.HistoryRecord{Employee1ID: 1, Employee2ID: 2}

		convey.Convey("Then each side sees the other as partner", func() {
			p, ok := rec.Partner(1)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(p, convey.ShouldEqual, int64(2))

			p, ok = rec.Partner(2)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(p, convey.ShouldEqual, int64(1))
		})

		convey.Convey("Then an outsider has no partner", func() {
			_, ok := rec.Partner(3)
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(rec.Involves(3), convey.ShouldBeFalse)
			convey.So(rec.Involves(2), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given degenerate history records", t, func() {
		convey.Convey("When both sides are the same employee", func() {
			_, ok := model.HistoryRecord{Employee1ID: 5, Employee2ID: 5}.Partner(5)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When one side is unset", func() {
			_, ok := model.HistoryRecord{Employee1ID: 5}.Partner(5)
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestStaticProfile(t *testing.T) {
	convey.Convey("Given a static profile", t, func() {
		var p model.Profile = model.StaticProfile{Newcomers: true}

		convey.Convey("Then it reports its preference without error", func() {
			v, err := p.WithNewcomers()
			convey.So(err, convey.ShouldBeNil)
			convey.So(v, convey.ShouldBeTrue)
		})
	})
}
