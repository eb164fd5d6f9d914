package storage

import (
	"context"

	"venue-crawler/models"
)

// VenueRepository persists crawl results. Saving the same venue twice
// updates it in place; implementations must be safe for concurrent use.
type VenueRepository interface {
	SaveVenue(ctx context.Context, v *models.CrawledVenueData) (int64, error)
	SaveRooms(ctx context.Context, venueID int64, rooms []*models.CrawledRoomData) error
	SaveReviews(ctx context.Context, venueID int64, reviews []*models.CrawledReviewData) (int, error)
	// Save stores a venue together with its rooms and reviews.
	Save(ctx context.Context, v *models.CrawledVenueData) (int64, error)
	FetchVenues(ctx context.Context) ([]*models.CrawledVenueData, error)
	Close() error
}

// RawVenueWriter is the interface for dumping unprocessed crawl output.
type RawVenueWriter interface {
	WriteRaw(venues []*models.CrawledVenueData) error
	Close() error
}

var (
	_ VenueRepository = (*SQLRepository)(nil)
	_ RawVenueWriter  = (*CSVWriter)(nil)
)
