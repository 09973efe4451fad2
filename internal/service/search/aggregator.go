package search

import (
	"context"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/normalize"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"go.uber.org/zap"
)

type Supplier interface {
	InitiateSearch(ctx context.Context, q supplier.SearchQuery) (supplier.SearchSession, error)
	PollResults(ctx context.Context, sessionID string, after int) (supplier.PollResponse, error)
}

type Policy struct {
	PollInterval      time.Duration
	MaxAttempts       int
	StallPolls        int
	StallThreshold    int
	InitiateRetries   int
	MaxSegmentRetries int
}

func DefaultPolicy() Policy {
	return Policy{
		PollInterval:      2 * time.Second,
		MaxAttempts:       15,
		StallPolls:        3,
		StallThreshold:    50,
		InitiateRetries:   2,
		MaxSegmentRetries: 2,
	}
}

func PolicyFromConfig(cfg config.SearchConfig) Policy {
	return Policy{
		PollInterval:      time.Duration(cfg.PollIntervalMillis) * time.Millisecond,
		MaxAttempts:       cfg.MaxAttempts,
		StallPolls:        cfg.StallPolls,
		StallThreshold:    cfg.StallThreshold,
		InitiateRetries:   cfg.InitiateRetries,
		MaxSegmentRetries: cfg.MaxSegmentRetries,
	}
}

// Aggregator drives one supplier search session from initiation to a terminal state.
type Aggregator struct {
	client     Supplier
	normalizer *normalize.Normalizer
	policy     Policy
	log        *zap.Logger
}

func NewAggregator(client Supplier, normalizer *normalize.Normalizer, policy Policy, log *zap.Logger) *Aggregator {
	return &Aggregator{
		client:     client,
		normalizer: normalizer,
		policy:     policy,
		log:        log.With(zap.String("service", "search")),
	}
}

// session accumulates one supplier session. Not safe for concurrent use.
type session struct {
	snap       domain.SegmentSnapshot
	cursor     int
	order      []string
	items      map[string]domain.Itinerary
	sameCount  int
	lastSample int
}

func newSession(index int, seg domain.SearchSegment) *session {
	return &session{
		snap: domain.SegmentSnapshot{
			Index:   index,
			Segment: seg,
			State:   domain.SearchStateCreated,
		},
		items:      make(map[string]domain.Itinerary),
		lastSample: -1,
	}
}

// merge is last-write-wins per itinerary id; display order is first-seen.
func (s *session) merge(its []domain.Itinerary) {
	for _, it := range its {
		if _, ok := s.items[it.ID]; !ok {
			s.order = append(s.order, it.ID)
		}
		s.items[it.ID] = it
	}
}

// observe records a reported completion and returns how many consecutive
// polls have seen the same effective value.
func (s *session) observe(reported int) int {
	if reported > s.snap.Completion {
		s.snap.Completion = min(reported, 100)
	}
	if s.snap.Completion == s.lastSample {
		s.sameCount++
	} else {
		s.sameCount = 1
		s.lastSample = s.snap.Completion
	}
	return s.sameCount
}

func (s *session) snapshot() domain.SegmentSnapshot {
	out := s.snap
	out.Itineraries = make([]domain.Itinerary, 0, len(s.order))
	for _, id := range s.order {
		out.Itineraries = append(out.Itineraries, s.items[id])
	}
	out.NoResults = out.State == domain.SearchStateDefinitivelyEmpty
	return out
}

// Run initiates and polls a session. onUpdate, when set, receives every intermediate
// snapshot; the returned snapshot is always terminal.
func (a *Aggregator) Run(ctx context.Context, index int, seg domain.SearchSegment, req domain.SearchRequest, onUpdate func(domain.SegmentSnapshot)) domain.SegmentSnapshot {
	s := newSession(index, seg)
	notify := func() {
		if onUpdate != nil {
			onUpdate(s.snapshot())
		}
	}
	log := a.log.With(zap.Int("segment", index), zap.String("route", seg.Origin+"-"+seg.Destination))

	sessionID, err := a.initiate(ctx, seg, req)
	if err != nil {
		log.Warn("search initiation failed", zap.Error(err))
		s.snap.State = domain.SearchStateFailed
		s.snap.Reason = err.Error()
		return s.snapshot()
	}
	s.snap.SessionID = sessionID
	s.snap.State = domain.SearchStatePolling
	notify()

	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, a.policy.PollInterval); err != nil {
				s.snap.State = domain.SearchStateFailed
				s.snap.Reason = err.Error()
				return s.snapshot()
			}
		}
		s.snap.Attempts = attempt

		resp, err := a.client.PollResults(ctx, sessionID, s.cursor)
		if err != nil {
			if domain.IsTransport(err) {
				log.Warn("poll failed, attempt consumed", zap.Int("attempt", attempt), zap.Error(err))
				notify()
				continue
			}
			// Unknown session or business rejection: the session cannot recover.
			log.Warn("search session lost", zap.Error(err))
			s.snap.State = domain.SearchStateFailed
			s.snap.Reason = err.Error()
			return s.snapshot()
		}

		s.merge(a.normalizer.Itineraries(resp.Offers, req.Passengers))
		if c := resp.Cursor.Int(); c > s.cursor {
			s.cursor = c
		}
		same := s.observe(resp.Completion.Int())

		if s.snap.Completion >= 100 {
			s.snap.State = domain.SearchStateComplete
			if len(s.items) == 0 {
				s.snap.State = domain.SearchStateDefinitivelyEmpty
			}
			log.Info("search complete", zap.Int("itineraries", len(s.items)), zap.Int("attempts", attempt))
			return s.snapshot()
		}
		if a.policy.StallPolls > 0 && same >= a.policy.StallPolls && s.snap.Completion > a.policy.StallThreshold {
			s.snap.State = domain.SearchStateStalled
			s.snap.Reason = "completion stopped advancing"
			log.Info("search stalled", zap.Int("completion", s.snap.Completion), zap.Int("itineraries", len(s.items)))
			return s.snapshot()
		}
		notify()
	}

	s.snap.State = domain.SearchStateTimedOut
	s.snap.Reason = "poll budget exhausted"
	log.Info("search timed out", zap.Int("completion", s.snap.Completion), zap.Int("itineraries", len(s.items)))
	return s.snapshot()
}

func (a *Aggregator) initiate(ctx context.Context, seg domain.SearchSegment, req domain.SearchRequest) (string, error) {
	q := supplier.SearchQuery{
		Segment: supplier.SearchSegment{
			From: seg.Origin,
			To:   seg.Destination,
			Date: seg.Date.Format("2006-01-02"),
		},
		Adults:     req.Passengers.Adults,
		Children:   req.Passengers.Children,
		Infants:    req.Passengers.Infants,
		Cabin:      req.Cabin,
		DirectOnly: req.DirectOnly,
	}

	var lastErr error
	for try := 0; try <= a.policy.InitiateRetries; try++ {
		if try > 0 {
			if err := sleep(ctx, a.policy.PollInterval); err != nil {
				return "", err
			}
		}
		session, err := a.client.InitiateSearch(ctx, q)
		if err == nil {
			return session.SessionID, nil
		}
		lastErr = err
		if !domain.IsTransport(err) {
			return "", err
		}
	}
	return "", lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
