package matching_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/coffeematch/internal/adapters/matching"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLifecycle(t *testing.T) {
	Convey("Given a lifecycle with a valid loader", t, func() {
		var loads atomic.Int32
		l := matching.NewLifecycle(func() (matching.Config, error) {
			loads.Add(1)
			return matching.Config{BaseURL: "http://matcher:8080"}, nil
		})

		Convey("When many goroutines ask for the client at once", func() {
			const callers = 32
			clients := make([]*matching.Client, callers)
			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c, err := l.Client()
					if err == nil {
						clients[i] = c
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one client is constructed and shared", func() {
				So(loads.Load(), ShouldEqual, int32(1))
				So(clients[0], ShouldNotBeNil)
				for _, c := range clients {
					So(c, ShouldPointTo, clients[0])
				}
			})
		})
	})

	Convey("Given a loader without a base URL", t, func() {
		var loads atomic.Int32
		l := matching.NewLifecycle(func() (matching.Config, error) {
			loads.Add(1)
			return matching.Config{}, nil
		})

		_, err1 := l.Client()
		c, err2 := l.Client()

		Convey("Then the configuration error is memoized", func() {
			So(c, ShouldBeNil)
			So(errors.Is(err1, matching.ErrConfiguration), ShouldBeTrue)
			So(err2, ShouldEqual, err1)
			So(loads.Load(), ShouldEqual, int32(1))
		})
	})

	Convey("Given a loader that fails", t, func() {
		l := matching.NewLifecycle(func() (matching.Config, error) {
			return matching.Config{}, errors.New("config file unreadable")
		})
		_, err := l.Client()
		So(errors.Is(err, matching.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Given no loader", t, func() {
		_, err := matching.NewLifecycle(nil).Client()
		So(errors.Is(err, matching.ErrConfiguration), ShouldBeTrue)
	})
}
