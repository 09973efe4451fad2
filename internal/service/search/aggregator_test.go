package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/normalize"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pollStep struct {
	completion int
	offers     []string
	err        error
}

// fakeSupplier replays scripted poll responses; after the script ends it repeats the last step.
type fakeSupplier struct {
	mu           sync.Mutex
	initiateErrs []error
	initiated    int
	steps        []pollStep
	polls        int
	afters       []int
}

func (f *fakeSupplier) InitiateSearch(_ context.Context, q supplier.SearchQuery) (supplier.SearchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated++
	if len(f.initiateErrs) > 0 {
		err := f.initiateErrs[0]
		f.initiateErrs = f.initiateErrs[1:]
		if err != nil {
			return supplier.SearchSession{}, err
		}
	}
	return supplier.SearchSession{SessionID: "S-" + q.Segment.From}, nil
}

func (f *fakeSupplier) PollResults(_ context.Context, _ string, after int) (supplier.PollResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afters = append(f.afters, after)
	step := f.steps[min(f.polls, len(f.steps)-1)]
	f.polls++
	if step.err != nil {
		return supplier.PollResponse{}, step.err
	}
	resp := supplier.PollResponse{Completion: supplier.FlexInt(step.completion), Cursor: supplier.FlexInt(f.polls)}
	for _, id := range step.offers {
		resp.Offers = append(resp.Offers, supplier.Offer{ID: id, Price: supplier.Price{Total: 100, Currency: "USD"}})
	}
	return resp, nil
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.PollInterval = time.Millisecond
	return p
}

func newTestAggregator(f *fakeSupplier, p Policy) *Aggregator {
	return NewAggregator(f, normalize.New(0.75, 0.10), p, zap.NewNop())
}

func testRequest(segments ...domain.SearchSegment) domain.SearchRequest {
	if len(segments) == 0 {
		segments = []domain.SearchSegment{{Origin: "ALA", Destination: "IST", Date: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}}
	}
	return domain.SearchRequest{Segments: segments, Passengers: domain.PassengerCounts{Adults: 1}}
}

func ids(its []domain.Itinerary) []string {
	out := make([]string, 0, len(its))
	for _, it := range its {
		out = append(out, it.ID)
	}
	return out
}

func TestAggregator_MergeIsIdempotentAndKeepsFirstSeenOrder(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{
		{completion: 30, offers: []string{"A", "B"}},
		{completion: 60, offers: []string{"B", "C"}},
		{completion: 100, offers: []string{"A"}},
	}}
	req := testRequest()

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateComplete, got.State)
	assert.Equal(t, []string{"A", "B", "C"}, ids(got.Itineraries))
	assert.False(t, got.NoResults)
	assert.Equal(t, []int{0, 1, 2}, f.afters)
}

func TestAggregator_UnknownDateLayoutDoesNotDropIncrement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"session_id":"S-1"}`))
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/results") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"completion": 100, "offers": [
			{"id": "GOOD", "price": {"total": 300, "currency": "USD"}, "legs": [{"segments": [
				{"carrier": "TK", "from": "ALA", "to": "IST", "depart_at": "2026-11-01T10:00:00Z", "arrive_at": "2026-11-01T14:00:00Z"}]}]},
			{"id": "ODD", "price": {"total": 350, "currency": "USD"}, "legs": [{"segments": [
				{"carrier": "KC", "from": "ALA", "to": "IST", "depart_at": "1 Nov 10h", "arrive_at": "2026-11-01T15:00:00Z"}]}]}
		]}`))
	}))
	defer srv.Close()

	client := supplier.NewClient(srv.URL, "tok", zap.NewNop())
	agg := NewAggregator(client, normalize.New(0.75, 0.10), testPolicy(), zap.NewNop())
	req := testRequest()

	got := agg.Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateComplete, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.ElementsMatch(t, []string{"GOOD", "ODD"}, ids(got.Itineraries))
}

func TestAggregator_CompletionIsMonotonic(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{
		{completion: 40},
		{completion: 20},
		{completion: 70},
		{completion: 100},
	}}
	req := testRequest()
	var seen []int

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, func(s domain.SegmentSnapshot) {
		seen = append(seen, s.Completion)
	})

	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 100, got.Completion)
}

func TestAggregator_NoPrematureEmpty(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{{completion: 20}, {completion: 40}}}
	p := testPolicy()
	p.MaxAttempts = 3
	req := testRequest()

	got := newTestAggregator(f, p).Run(context.Background(), 0, req.Segments[0], req, func(s domain.SegmentSnapshot) {
		assert.False(t, s.NoResults, "empty surfaced before completion reached 100")
	})

	assert.Equal(t, domain.SearchStateTimedOut, got.State)
	assert.False(t, got.NoResults)
	assert.Equal(t, 3, got.Attempts)
}

func TestAggregator_DefinitivelyEmpty(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{{completion: 50}, {completion: 100}}}
	req := testRequest()

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateDefinitivelyEmpty, got.State)
	assert.True(t, got.NoResults)
}

func TestAggregator_StallStopsEarly(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{
		{completion: 60, offers: []string{"A"}},
		{completion: 60},
		{completion: 60},
		{completion: 60},
	}}
	req := testRequest()

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateStalled, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, []string{"A"}, ids(got.Itineraries))
}

func TestAggregator_StallIgnoredBelowThreshold(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{{completion: 40}}}
	p := testPolicy()
	p.MaxAttempts = 5
	req := testRequest()

	got := newTestAggregator(f, p).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateTimedOut, got.State)
	assert.Equal(t, 5, got.Attempts)
}

func TestAggregator_TransportErrorsConsumeAttempts(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{
		{completion: 30, offers: []string{"A"}},
		{err: &domain.TransportError{Op: "poll_results", Timeout: true, Err: context.DeadlineExceeded}},
		{completion: 100, offers: []string{"B"}},
	}}
	req := testRequest()

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateComplete, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, []string{"A", "B"}, ids(got.Itineraries))
}

func TestAggregator_SessionNotFoundFails(t *testing.T) {
	f := &fakeSupplier{steps: []pollStep{
		{completion: 30, offers: []string{"A"}},
		{err: domain.ErrNotFound},
	}}
	req := testRequest()

	got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

	assert.Equal(t, domain.SearchStateFailed, got.State)
	assert.Equal(t, []string{"A"}, ids(got.Itineraries))
}

func TestAggregator_InitiateRetriesOnlyTransport(t *testing.T) {
	transport := &domain.TransportError{Op: "initiate_search", Err: errors.New("connection reset")}

	t.Run("transport retried", func(t *testing.T) {
		f := &fakeSupplier{initiateErrs: []error{transport, transport}, steps: []pollStep{{completion: 100, offers: []string{"A"}}}}
		req := testRequest()

		got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

		assert.Equal(t, 3, f.initiated)
		assert.Equal(t, domain.SearchStateComplete, got.State)
	})

	t.Run("budget spent", func(t *testing.T) {
		f := &fakeSupplier{initiateErrs: []error{transport, transport, transport}, steps: []pollStep{{completion: 100}}}
		req := testRequest()

		got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

		assert.Equal(t, 3, f.initiated)
		assert.Equal(t, domain.SearchStateFailed, got.State)
		assert.Zero(t, f.polls)
	})

	t.Run("rejection not retried", func(t *testing.T) {
		f := &fakeSupplier{initiateErrs: []error{&domain.RejectedError{Code: "bad_route"}}, steps: []pollStep{{completion: 100}}}
		req := testRequest()

		got := newTestAggregator(f, testPolicy()).Run(context.Background(), 0, req.Segments[0], req, nil)

		require.Equal(t, 1, f.initiated)
		assert.Equal(t, domain.SearchStateFailed, got.State)
	})
}
