package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SearchUseCase interface {
	Start(ctx context.Context, req domain.SearchRequest) (domain.SearchSnapshot, error)
	Get(ctx context.Context, id string) (domain.SearchSnapshot, error)
	RetrySegment(ctx context.Context, id string, index int) (domain.SearchSnapshot, error)
	FindItinerary(ctx context.Context, id string, index int, itineraryID string) (domain.Itinerary, domain.PassengerCounts, error)
}

type SnapshotStore interface {
	Save(ctx context.Context, snap domain.SearchSnapshot) error
	Load(ctx context.Context, id string) (domain.SearchSnapshot, error)
}

// Service runs segment pollers in the background and publishes their
// snapshots to the store. Close stops and waits for all pollers.
type Service struct {
	agg     *Aggregator
	store   SnapshotStore
	enabled func() bool
	policy  Policy
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes read-modify-write of snapshots in the store.
	mu sync.Mutex
}

var _ SearchUseCase = (*Service)(nil)

func NewService(agg *Aggregator, store SnapshotStore, enabled func() bool, log *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Service{
		agg:     agg,
		store:   store,
		enabled: enabled,
		policy:  agg.policy,
		log:     log.With(zap.String("service", "search")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) Start(ctx context.Context, req domain.SearchRequest) (domain.SearchSnapshot, error) {
	if !s.enabled() {
		return domain.SearchSnapshot{}, domain.ErrIntegrationDisabled
	}
	if err := validateRequest(req); err != nil {
		return domain.SearchSnapshot{}, err
	}

	snap := domain.SearchSnapshot{
		ID:       uuid.NewString(),
		Request:  req,
		Segments: make([]domain.SegmentSnapshot, len(req.Segments)),
	}
	for i, seg := range req.Segments {
		snap.Segments[i] = domain.SegmentSnapshot{Index: i, Segment: seg, State: domain.SearchStateCreated}
	}
	snap.Refresh()
	if err := s.store.Save(ctx, snap); err != nil {
		return domain.SearchSnapshot{}, fmt.Errorf("save search: %w", err)
	}

	s.log.Info("search started", zap.String("search_id", snap.ID), zap.Int("segments", len(req.Segments)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		g, gctx := errgroup.WithContext(s.ctx)
		for i, seg := range req.Segments {
			g.Go(func() error {
				s.runSegment(gctx, snap.ID, i, seg, req, 0)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return snap, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.SearchSnapshot, error) {
	return s.store.Load(ctx, id)
}

// RetrySegment re-polls one segment that finished without itineraries,
// leaving its siblings untouched.
func (s *Service) RetrySegment(ctx context.Context, id string, index int) (domain.SearchSnapshot, error) {
	if !s.enabled() {
		return domain.SearchSnapshot{}, domain.ErrIntegrationDisabled
	}

	s.mu.Lock()
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return domain.SearchSnapshot{}, err
	}
	if index < 0 || index >= len(snap.Segments) {
		s.mu.Unlock()
		return domain.SearchSnapshot{}, &domain.ValidationError{Field: "segment", Reason: "out of range"}
	}
	seg := snap.Segments[index]
	switch {
	case !seg.State.Done() || len(seg.Itineraries) > 0:
		s.mu.Unlock()
		return domain.SearchSnapshot{}, fmt.Errorf("segment %d: %w: segment has results or is still polling", index, domain.ErrInvalidTransition)
	case seg.Retries >= s.policy.MaxSegmentRetries:
		s.mu.Unlock()
		return domain.SearchSnapshot{}, fmt.Errorf("segment %d: %w: retry budget spent", index, domain.ErrInvalidTransition)
	}

	retries := seg.Retries + 1
	snap.Segments = append([]domain.SegmentSnapshot(nil), snap.Segments...)
	snap.Segments[index] = domain.SegmentSnapshot{
		Index:   index,
		Segment: seg.Segment,
		State:   domain.SearchStateCreated,
		Retries: retries,
	}
	snap.Refresh()
	err = s.store.Save(ctx, snap)
	s.mu.Unlock()
	if err != nil {
		return domain.SearchSnapshot{}, fmt.Errorf("save search: %w", err)
	}

	s.log.Info("segment retry", zap.String("search_id", id), zap.Int("segment", index), zap.Int("retry", retries))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSegment(s.ctx, id, index, seg.Segment, snap.Request, retries)
	}()
	return snap, nil
}

func (s *Service) FindItinerary(ctx context.Context, id string, index int, itineraryID string) (domain.Itinerary, domain.PassengerCounts, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return domain.Itinerary{}, domain.PassengerCounts{}, err
	}
	if index < 0 || index >= len(snap.Segments) {
		return domain.Itinerary{}, domain.PassengerCounts{}, fmt.Errorf("segment %d: %w", index, domain.ErrNotFound)
	}
	for _, it := range snap.Segments[index].Itineraries {
		if it.ID == itineraryID {
			return it, snap.Request.Passengers, nil
		}
	}
	return domain.Itinerary{}, domain.PassengerCounts{}, fmt.Errorf("itinerary %s: %w", itineraryID, domain.ErrNotFound)
}

func (s *Service) runSegment(ctx context.Context, id string, index int, seg domain.SearchSegment, req domain.SearchRequest, retries int) {
	publish := func(ss domain.SegmentSnapshot) {
		ss.Retries = retries
		s.update(id, ss)
	}
	final := s.agg.Run(ctx, index, seg, req, publish)
	publish(final)
}

func (s *Service) update(id string, seg domain.SegmentSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The service context may already be cancelled on shutdown; the final write still goes out.
	ctx := context.WithoutCancel(s.ctx)
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		s.log.Warn("load search snapshot", zap.String("search_id", id), zap.Error(err))
		return
	}
	if seg.Index >= len(snap.Segments) {
		return
	}
	snap.Segments = append([]domain.SegmentSnapshot(nil), snap.Segments...)
	snap.Segments[seg.Index] = seg
	snap.Refresh()
	if err := s.store.Save(ctx, snap); err != nil {
		s.log.Warn("save search snapshot", zap.String("search_id", id), zap.Error(err))
	}
}

func validateRequest(req domain.SearchRequest) error {
	if len(req.Segments) == 0 {
		return &domain.ValidationError{Field: "segments", Reason: "at least one segment is required"}
	}
	for i, seg := range req.Segments {
		if len(strings.TrimSpace(seg.Origin)) != 3 || len(strings.TrimSpace(seg.Destination)) != 3 {
			return &domain.ValidationError{Field: fmt.Sprintf("segments[%d]", i), Reason: "origin and destination must be IATA codes"}
		}
		if strings.EqualFold(seg.Origin, seg.Destination) {
			return &domain.ValidationError{Field: fmt.Sprintf("segments[%d]", i), Reason: "origin equals destination"}
		}
		if seg.Date.IsZero() {
			return &domain.ValidationError{Field: fmt.Sprintf("segments[%d].date", i), Reason: "required"}
		}
	}
	p := req.Passengers
	switch {
	case p.Adults < 1:
		return &domain.ValidationError{Field: "passengers.adults", Reason: "at least one adult"}
	case p.Children < 0 || p.Infants < 0:
		return &domain.ValidationError{Field: "passengers", Reason: "negative count"}
	case p.Infants > p.Adults:
		return &domain.ValidationError{Field: "passengers.infants", Reason: "more infants than adults"}
	case p.Total() > 9:
		return &domain.ValidationError{Field: "passengers", Reason: "at most 9 travelers"}
	}
	return nil
}
