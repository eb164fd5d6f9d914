// Package scraper holds the progress-event contract shared by the map-search
// session and the website room extractor.
package scraper

import (
	"sync"

	"venue-crawler/utils"
)

// EventKind names a progress event.
type EventKind string

const (
	VariantStarted    EventKind = "variant_started"
	VariantAbandoned  EventKind = "variant_abandoned"
	CandidateFound    EventKind = "candidate_found"
	CandidateSkipped  EventKind = "candidate_skipped_duplicate"
	VenueAccepted     EventKind = "venue_accepted"
	VenueRejected     EventKind = "venue_rejected"
	ExtractionError   EventKind = "extraction_error"
	ImageSaved        EventKind = "image_saved"
	RoomsPageSelected EventKind = "rooms_page_selected"
	RoomsExtracted    EventKind = "rooms_extracted"
	RunFinished       EventKind = "run_finished"
)

// Event is one operator-facing progress record. It is not part of the data
// contract; fields that do not apply stay empty.
type Event struct {
	Kind    EventKind
	Query   string
	PlaceID string
	Name    string
	URL     string
	Count   int
	Err     error
}

// Reporter receives progress events.
type Reporter interface {
	Report(Event)
}

// LogReporter writes events as structured log lines.
type LogReporter struct {
	Logger *utils.Logger
}

func (r LogReporter) Report(e Event) {
	kv := []any{"kind", string(e.Kind)}
	if e.Query != "" {
		kv = append(kv, "query", e.Query)
	}
	if e.PlaceID != "" {
		kv = append(kv, "place_id", e.PlaceID)
	}
	if e.Name != "" {
		kv = append(kv, "name", e.Name)
	}
	if e.URL != "" {
		kv = append(kv, "url", e.URL)
	}
	if e.Count > 0 {
		kv = append(kv, "count", e.Count)
	}
	if e.Err != nil {
		kv = append(kv, "err", e.Err)
	}
	r.Logger.Event("crawl progress", kv...)
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
