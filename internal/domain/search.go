package domain

type SearchState string

const (
	SearchStateCreated           SearchState = "created"
	SearchStatePolling           SearchState = "polling"
	SearchStateComplete          SearchState = "complete"
	SearchStateDefinitivelyEmpty SearchState = "definitively_empty"
	SearchStateStalled           SearchState = "stalled"
	SearchStateTimedOut          SearchState = "timed_out"
	SearchStateFailed            SearchState = "failed"
)

func (s SearchState) Done() bool {
	return s != SearchStateCreated && s != SearchStatePolling
}

// SegmentSnapshot is the caller-visible view of one polled search session.
type SegmentSnapshot struct {
	Index       int           `json:"index"`
	Segment     SearchSegment `json:"segment"`
	SessionID   string        `json:"session_id,omitempty"`
	State       SearchState   `json:"state"`
	Completion  int           `json:"completion"`
	Attempts    int           `json:"attempts"`
	Retries     int           `json:"retries"`
	NoResults   bool          `json:"no_results"`
	Reason      string        `json:"reason,omitempty"`
	Itineraries []Itinerary   `json:"itineraries"`
}

type SearchSnapshot struct {
	ID         string            `json:"id"`
	Request    SearchRequest     `json:"request"`
	AnyPolling bool              `json:"any_polling"`
	Segments   []SegmentSnapshot `json:"segments"`
}

// Refresh recomputes the combined flag from the segments.
func (s *SearchSnapshot) Refresh() {
	s.AnyPolling = false
	for _, seg := range s.Segments {
		if !seg.State.Done() {
			s.AnyPolling = true
			return
		}
	}
}
