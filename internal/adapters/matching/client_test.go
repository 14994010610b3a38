package matching_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/internal/domain/seniority"
	. "github.com/smartystreets/goconvey/convey"
)

// matcherStub is a configurable matching service.
type matcherStub struct {
	healthStatus int
	healthBody   string
	matchStatus  int
	matchBody    string

	healthHits atomic.Int64
	matchHits  atomic.Int64

	mu       sync.Mutex
	received []matching.MatchRequest
}

func newMatcherStub() *matcherStub {
	return &matcherStub{
		healthStatus: http.StatusOK,
		healthBody:   `{"status":"OK"}`,
		matchStatus:  http.StatusOK,
		matchBody:    `{"pairs":[{"employee1_id":1,"employee2_id":2}]}`,
	}
}

func (m *matcherStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case matching.HealthPath:
		m.healthHits.Add(1)
		w.WriteHeader(m.healthStatus)
		_, _ = io.WriteString(w, m.healthBody)
	case matching.MatchPath:
		m.matchHits.Add(1)
		var req matching.MatchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.received = append(m.received, req)
		m.mu.Unlock()
		w.WriteHeader(m.matchStatus)
		_, _ = io.WriteString(w, m.matchBody)
	default:
		http.NotFound(w, r)
	}
}

func twoEmployees() []model.Employee {
	dept := int64(7)
	return []model.Employee{
		{ID: 1, FullName: "Ann", Position: "Senior Engineer", DepartmentID: &dept, Active: true},
		{ID: 2, FullName: "Bob", Position: "Junior Analyst", Active: true, Profile: model.StaticProfile{Newcomers: true}},
	}
}

func newTestClient(baseURL string, opts ...matching.Option) *matching.Client {
	opts = append([]matching.Option{matching.WithJitter(noJitter)}, opts...)
	c, err := matching.New(matching.Config{BaseURL: baseURL, Timeout: time.Second, MaxRetries: 3, BackoffBase: 500 * time.Millisecond}, opts...)
	So(err, ShouldBeNil)
	return c
}

func TestNew(t *testing.T) {
	Convey("Given client configurations", t, func() {
		Convey("A missing base URL is a configuration error", func() {
			c, err := matching.New(matching.Config{})
			So(c, ShouldBeNil)
			So(errors.Is(err, matching.ErrConfiguration), ShouldBeTrue)
		})

		Convey("A non-http base URL is a configuration error", func() {
			_, err := matching.New(matching.Config{BaseURL: "ftp://matcher"})
			So(errors.Is(err, matching.ErrConfiguration), ShouldBeTrue)
		})

		Convey("Zero values fall back to defaults and the trailing slash is dropped", func() {
			c, err := matching.New(matching.Config{BaseURL: "http://matcher:8080/"})
			So(err, ShouldBeNil)
			cfg := c.Config()
			So(cfg.BaseURL, ShouldEqual, "http://matcher:8080")
			So(cfg.Timeout, ShouldEqual, matching.DefaultTimeout)
			So(cfg.MaxRetries, ShouldEqual, matching.DefaultMaxRetries)
			So(cfg.BackoffBase, ShouldEqual, matching.DefaultBackoffBase)
		})

		Convey("A failing sink factory leaves the client usable", func() {
			c, err := matching.New(matching.Config{BaseURL: "http://matcher"},
				matching.WithSinkFactory(func() (matching.Sink, error) { return nil, errors.New("duplicate registration") }))
			So(err, ShouldBeNil)
			So(c.Snapshot(), ShouldResemble, matching.Snapshot{})
		})
	})
}

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	Convey("Given a matching service", t, func() {
		stub := newMatcherStub()
		srv := httptest.NewServer(stub)
		defer srv.Close()

		Convey("When it reports OK", func() {
			c := newTestClient(srv.URL)
			So(c.CheckHealth(ctx), ShouldBeTrue)

			Convey("Then only the check is counted", func() {
				snap := c.Snapshot()
				So(snap.HealthChecks, ShouldEqual, uint64(1))
				So(snap.HealthFailures, ShouldEqual, uint64(0))
			})
		})

		Convey("When it reports DOWN", func() {
			stub.healthBody = `{"status":"DOWN"}`
			c := newTestClient(srv.URL)
			So(c.CheckHealth(ctx), ShouldBeFalse)
			So(c.Snapshot().HealthFailures, ShouldEqual, uint64(1))
		})

		Convey("When it answers 500", func() {
			stub.healthStatus = http.StatusInternalServerError
			c := newTestClient(srv.URL)
			So(c.CheckHealth(ctx), ShouldBeFalse)
			So(c.Snapshot().HealthFailures, ShouldEqual, uint64(1))
			So(stub.healthHits.Load(), ShouldEqual, int64(1))
		})

		Convey("When the body is not JSON", func() {
			stub.healthBody = `<html>ok</html>`
			c := newTestClient(srv.URL)
			So(c.CheckHealth(ctx), ShouldBeFalse)
			So(c.Snapshot().HealthFailures, ShouldEqual, uint64(1))
		})

		Convey("When it is unreachable", func() {
			sleeper := &sleepRecorder{}
			doer := &fakeDoer{fn: func(int, *http.Request) (*http.Response, error) { return nil, errRefused }}
			c := newTestClient("http://matcher", matching.WithHTTPClient(doer), matching.WithSleeper(sleeper.Sleep))

			So(c.CheckHealth(ctx), ShouldBeFalse)
			So(doer.Calls(), ShouldEqual, 3)
			So(c.Snapshot().HealthChecks, ShouldEqual, uint64(1))
			So(c.Snapshot().HealthFailures, ShouldEqual, uint64(1))
		})
	})
}

// slowProfile delays request building.
type slowProfile struct{ delay time.Duration }

func (p slowProfile) WithNewcomers() (bool, error) {
	time.Sleep(p.delay)
	return true, nil
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a healthy matching service", t, func() {
		stub := newMatcherStub()
		srv := httptest.NewServer(stub)
		defer srv.Close()

		Convey("When building the request is slow", func() {
			c := newTestClient(srv.URL)
			employees := twoEmployees()
			employees[1].Profile = slowProfile{delay: 300 * time.Millisecond}

			_, err := c.Match(ctx, employees, nil)

			Convey("Then latency covers only the service call", func() {
				So(err, ShouldBeNil)
				So(c.Snapshot().MatchingLatencyMsTotal, ShouldBeGreaterThan, 0.0)
				So(c.Snapshot().MatchingLatencyMsTotal, ShouldBeLessThan, 250.0)
			})
		})

		Convey("When it returns one pair", func() {
			sink := newRecordingSink()
			c := newTestClient(srv.URL, matching.WithSink(sink))
			history := []model.HistoryRecord{{Employee1ID: 1, Employee2ID: 3}}

			pairs, err := c.Match(ctx, twoEmployees(), history)

			Convey("Then the pair is returned in service order", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldResemble, []model.Pair{{A: 1, B: 2}})
			})

			Convey("Then every counter moves on both channels", func() {
				snap := c.Snapshot()
				So(snap.HealthChecks, ShouldEqual, uint64(1))
				So(snap.MatchingRequests, ShouldEqual, uint64(1))
				So(snap.MatchingRequestsSuccess, ShouldEqual, uint64(1))
				So(snap.MatchingFailures, ShouldEqual, uint64(0))
				So(snap.MatchingLatencyMsTotal, ShouldBeGreaterThan, 0.0)
				So(sink.Count("health_checks"), ShouldEqual, 1)
				So(sink.Count("matching_requests"), ShouldEqual, 1)
				So(sink.Count("matching_success"), ShouldEqual, 1)
				So(sink.latencies, ShouldHaveLength, 1)
			})

			Convey("Then the service receives the projected candidates", func() {
				So(stub.received, ShouldHaveLength, 1)
				got := stub.received[0].Employees
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, int64(1))
				So(*got[0].Department, ShouldEqual, int64(7))
				So(got[0].PositionLevel, ShouldEqual, seniority.Senior)
				So(got[0].ExcludedPartners, ShouldResemble, []int64{3})
				So(got[1].Department, ShouldBeNil)
				So(got[1].PositionLevel, ShouldEqual, seniority.Junior)
				So(got[1].ExcludedPartners, ShouldResemble, []int64{})
				So(got[1].Preferences.WithNewcomers, ShouldBeTrue)
			})
		})

		Convey("When it returns no pairs", func() {
			stub.matchBody = `{"pairs":[]}`
			c := newTestClient(srv.URL)

			pairs, err := c.Match(ctx, twoEmployees(), nil)

			Convey("Then an empty result is a success without the success counter", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldNotBeNil)
				So(pairs, ShouldBeEmpty)
				snap := c.Snapshot()
				So(snap.MatchingRequests, ShouldEqual, uint64(1))
				So(snap.MatchingRequestsSuccess, ShouldEqual, uint64(0))
				So(snap.MatchingFailures, ShouldEqual, uint64(0))
			})
		})

		Convey("When it answers the match with 500", func() {
			stub.matchStatus = http.StatusInternalServerError
			c := newTestClient(srv.URL)

			pairs, err := c.Match(ctx, twoEmployees(), nil)

			Convey("Then it is a protocol failure", func() {
				So(pairs, ShouldBeNil)
				So(errors.Is(err, matching.ErrProtocol), ShouldBeTrue)
				So(c.Snapshot().MatchingFailures, ShouldEqual, uint64(1))
				So(stub.matchHits.Load(), ShouldEqual, int64(1))
			})
		})

		Convey("When the match body is not JSON", func() {
			stub.matchBody = `not json`
			c := newTestClient(srv.URL)

			_, err := c.Match(ctx, twoEmployees(), nil)

			So(errors.Is(err, matching.ErrProtocol), ShouldBeTrue)
			So(c.Snapshot().MatchingFailures, ShouldEqual, uint64(1))
			So(c.Snapshot().MatchingLatencyMsTotal, ShouldEqual, 0.0)
		})

		Convey("When the metrics sink panics", func() {
			c := newTestClient(srv.URL, matching.WithSink(panicSink{}))

			pairs, err := c.Match(ctx, twoEmployees(), nil)

			Convey("Then the run and the in-process counters are unaffected", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldHaveLength, 1)
				So(c.Snapshot().MatchingRequestsSuccess, ShouldEqual, uint64(1))
			})
		})

		Convey("When N runs execute concurrently", func() {
			c := newTestClient(srv.URL)
			const n = 20
			var wg sync.WaitGroup
			for range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.Match(ctx, twoEmployees(), nil)
				}()
			}
			wg.Wait()

			Convey("Then every run is counted exactly once", func() {
				snap := c.Snapshot()
				So(snap.HealthChecks, ShouldEqual, uint64(n))
				So(snap.MatchingRequests, ShouldEqual, uint64(n))
				So(snap.MatchingRequestsSuccess, ShouldEqual, uint64(n))
			})
		})
	})

	Convey("Given an unhealthy matching service", t, func() {
		stub := newMatcherStub()
		stub.healthBody = `{"status":"DOWN"}`
		srv := httptest.NewServer(stub)
		defer srv.Close()
		c := newTestClient(srv.URL)

		pairs, err := c.Match(ctx, twoEmployees(), nil)

		Convey("Then no matching request is sent", func() {
			So(pairs, ShouldBeNil)
			So(errors.Is(err, matching.ErrDependencyUnhealthy), ShouldBeTrue)
			So(stub.matchHits.Load(), ShouldEqual, int64(0))
			snap := c.Snapshot()
			So(snap.HealthFailures, ShouldEqual, uint64(1))
			So(snap.MatchingRequests, ShouldEqual, uint64(0))
		})
	})

	Convey("Given a service whose matching endpoint always times out", t, func() {
		sleeper := &sleepRecorder{}
		doer := &fakeDoer{fn: func(_ int, req *http.Request) (*http.Response, error) {
			if req.URL.Path == matching.HealthPath {
				return response(http.StatusOK, `{"status":"OK"}`), nil
			}
			return nil, context.DeadlineExceeded
		}}
		c := newTestClient("http://matcher", matching.WithHTTPClient(doer), matching.WithSleeper(sleeper.Sleep))

		pairs, err := c.Match(ctx, twoEmployees(), nil)

		Convey("Then three attempts are made with 500ms and 1s waits", func() {
			So(pairs, ShouldBeNil)
			So(errors.Is(err, matching.ErrTransport), ShouldBeTrue)
			So(doer.Calls(), ShouldEqual, 4)
			So(sleeper.Waits(), ShouldResemble, []time.Duration{500 * time.Millisecond, time.Second})
		})

		Convey("Then the run counts as a failed request", func() {
			snap := c.Snapshot()
			So(snap.MatchingRequests, ShouldEqual, uint64(1))
			So(snap.MatchingFailures, ShouldEqual, uint64(1))
			So(snap.MatchingRequestsSuccess, ShouldEqual, uint64(0))
		})
	})

	Convey("Given a slow service and a short per-attempt timeout", t, func() {
		stub := newMatcherStub()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == matching.MatchPath {
				select {
				case <-r.Context().Done():
				case <-time.After(500 * time.Millisecond):
				}
				return
			}
			stub.ServeHTTP(w, r)
		}))
		defer srv.Close()

		sleeper := &sleepRecorder{}
		c, err := matching.New(matching.Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, MaxRetries: 2},
			matching.WithSleeper(sleeper.Sleep), matching.WithJitter(noJitter))
		So(err, ShouldBeNil)

		_, err = c.Match(ctx, twoEmployees(), nil)

		So(errors.Is(err, matching.ErrTransport), ShouldBeTrue)
		So(sleeper.Waits(), ShouldHaveLength, 1)
	})
}
