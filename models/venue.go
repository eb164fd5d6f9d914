package models

import "time"

// Room defaults applied when a site does not state a value.
const (
	DefaultDifficulty = 3
	DefaultMinPlayers = 2
	DefaultMaxPlayers = 6
	DefaultDuration   = 60
	DefaultTheme      = "Mystery"
)

// CrawledVenueData is one venue discovered on the map search. Optional fields
// stay empty (strings) or nil (numbers) when the page did not yield them.
type CrawledVenueData struct {
	Name          string               `json:"name"`
	Address       string               `json:"address,omitempty"`
	Phone         string               `json:"phone,omitempty"`
	Website       string               `json:"website,omitempty"`
	Category      string               `json:"category,omitempty"`
	CategoryMatch bool                 `json:"category_match"`
	Rating        *float64             `json:"rating,omitempty"`
	ReviewCount   *int                 `json:"review_count,omitempty"`
	OpeningHours  string               `json:"opening_hours,omitempty"`
	Latitude      *float64             `json:"latitude,omitempty"`
	Longitude     *float64             `json:"longitude,omitempty"`
	MapURL        string               `json:"map_url,omitempty"`
	PlaceID       string               `json:"place_id,omitempty"`
	ImageURL      string               `json:"image_url,omitempty"`
	ImagePath     string               `json:"image_path,omitempty"`
	Description   string               `json:"description,omitempty"`
	Rooms         []*CrawledRoomData   `json:"rooms,omitempty"`
	Reviews       []*CrawledReviewData `json:"reviews,omitempty"`
	Query         string               `json:"query,omitempty"`
	CrawledAt     time.Time            `json:"crawled_at"`
}

// Key is the venue identity: the place id when known, else name and address.
func (v *CrawledVenueData) Key() string {
	if v.PlaceID != "" {
		return v.PlaceID
	}
	return v.Name + "|" + v.Address
}

// CrawledRoomData is one bookable room or game parsed from a venue website.
type CrawledRoomData struct {
	Name            string   `json:"name"`
	Theme           string   `json:"theme"`
	Difficulty      int      `json:"difficulty"`
	MinPlayers      int      `json:"min_players"`
	MaxPlayers      int      `json:"max_players"`
	DurationMinutes int      `json:"duration_minutes"`
	Price           *float64 `json:"price,omitempty"`
	Description     string   `json:"description,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// Normalise fills defaults and enforces the room invariants:
// difficulty within 1..5 and MinPlayers <= MaxPlayers.
func (r *CrawledRoomData) Normalise() {
	if r.Theme == "" {
		r.Theme = DefaultTheme
	}
	switch {
	case r.Difficulty == 0:
		r.Difficulty = DefaultDifficulty
	case r.Difficulty < 1:
		r.Difficulty = 1
	case r.Difficulty > 5:
		r.Difficulty = 5
	}
	if r.MinPlayers <= 0 {
		r.MinPlayers = DefaultMinPlayers
	}
	if r.MaxPlayers <= 0 {
		r.MaxPlayers = DefaultMaxPlayers
	}
	if r.MinPlayers > r.MaxPlayers {
		r.MinPlayers, r.MaxPlayers = r.MaxPlayers, r.MinPlayers
	}
	if r.DurationMinutes <= 0 {
		r.DurationMinutes = DefaultDuration
	}
}

// CrawledReviewData is a single review scraped from a venue detail panel.
type CrawledReviewData struct {
	ExternalID   string     `json:"external_id,omitempty"`
	Author       string     `json:"author"`
	Rating       int        `json:"rating"`
	Text         string     `json:"text"`
	RelativeDate string     `json:"relative_date,omitempty"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	HelpfulCount *int       `json:"helpful_count,omitempty"`
}

// RunSummary counts what a single map-search run did.
type RunSummary struct {
	Location          string        `json:"location"`
	Variants          int           `json:"variants"`
	VariantsAbandoned int           `json:"variants_abandoned"`
	Found             int           `json:"found"`
	Processed         int           `json:"processed"`
	Accepted          int           `json:"accepted"`
	Rejected          int           `json:"rejected"`
	SkippedDuplicate  int           `json:"skipped_duplicate"`
	Failed            int           `json:"failed"`
	Partial           bool          `json:"partial"`
	Duration          time.Duration `json:"duration"`
}

// CrawlReport holds the computed overview printed at the end of a crawl.
type CrawlReport struct {
	Runs             []RunSummary
	TotalVenues      int
	VenuesWithSite   int
	CategoryMatches  int
	RatedVenues      int
	AverageRating    float64
	TotalReviews     int
	TopRated         []*CrawledVenueData
	TotalRooms       int
	RoomsByTheme     map[string]int
	AverageRoomPrice float64
}
