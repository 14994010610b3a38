package matching_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type doFunc func(call int, req *http.Request) (*http.Response, error)

// fakeDoer counts attempts and captures request bodies.
type fakeDoer struct {
	mu     sync.Mutex
	calls  int
	paths  []string
	bodies []string
	fn     doFunc
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.paths = append(f.paths, req.URL.Path)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeDoer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func (s *sleepRecorder) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func noJitter(time.Duration) time.Duration { return 0 }

type recordingSink struct {
	mu        sync.Mutex
	counts    map[string]int
	latencies []float64
}

func newRecordingSink() *recordingSink { return &recordingSink{counts: map[string]int{}} }

func (s *recordingSink) inc(name string) {
	s.mu.Lock()
	s.counts[name]++
	s.mu.Unlock()
}

func (s *recordingSink) IncHealthChecks()     { s.inc("health_checks") }
func (s *recordingSink) IncHealthFailures()   { s.inc("health_failures") }
func (s *recordingSink) IncMatchingRequests() { s.inc("matching_requests") }
func (s *recordingSink) IncMatchingFailures() { s.inc("matching_failures") }
func (s *recordingSink) IncMatchingSuccess()  { s.inc("matching_success") }
func (s *recordingSink) ObserveMatchingLatency(seconds float64) {
	s.mu.Lock()
	s.latencies = append(s.latencies, seconds)
	s.mu.Unlock()
}

func (s *recordingSink) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// panicSink fails on every update.
type panicSink struct{}

func (panicSink) IncHealthChecks()               { panic("sink down") }
func (panicSink) IncHealthFailures()             { panic("sink down") }
func (panicSink) IncMatchingRequests()           { panic("sink down") }
func (panicSink) IncMatchingFailures()           { panic("sink down") }
func (panicSink) IncMatchingSuccess()            { panic("sink down") }
func (panicSink) ObserveMatchingLatency(float64) { panic("sink down") }
