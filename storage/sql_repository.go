package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"venue-crawler/models"
	"venue-crawler/utils"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLRepository persists venues, rooms and reviews to PostgreSQL or SQLite.
// Queries are written with "?" placeholders and rebound per driver.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// OpenRepository connects with driver and dsn, retrying the initial ping,
// and creates the schema.
func OpenRepository(ctx context.Context, driver, dsn string, retry utils.RetryConfig) (*SQLRepository, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection: an in-memory database exists per connection, and
		// SQLite serialises writers anyway.
		db.SetMaxOpenConns(1)
	}

	if err := retry.Do(ctx, driver+" ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &SQLRepository{db: db, driver: driver}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return r, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	id, num, ts := "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "TIMESTAMPTZ"
	if r.driver == DriverSQLite {
		id, num, ts = "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL", "DATETIME"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS venues (
			id             ` + id + `,
			place_id       TEXT    NOT NULL DEFAULT '',
			name           TEXT    NOT NULL,
			address        TEXT    NOT NULL DEFAULT '',
			phone          TEXT    NOT NULL DEFAULT '',
			website        TEXT    NOT NULL DEFAULT '',
			category       TEXT    NOT NULL DEFAULT '',
			category_match BOOLEAN NOT NULL DEFAULT FALSE,
			rating         ` + num + `,
			review_count   INTEGER,
			opening_hours  TEXT    NOT NULL DEFAULT '',
			latitude       ` + num + `,
			longitude      ` + num + `,
			map_url        TEXT    NOT NULL DEFAULT '',
			image_url      TEXT    NOT NULL DEFAULT '',
			image_path     TEXT    NOT NULL DEFAULT '',
			description    TEXT    NOT NULL DEFAULT '',
			query          TEXT    NOT NULL DEFAULT '',
			crawled_at     ` + ts + ` NOT NULL
		)`,
		// Venue identity: the place id when known, else name and address.
		// The upsert in SaveVenue names these indexes as its conflict targets.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_venues_place_id ON venues(place_id) WHERE place_id <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_venues_name_address ON venues(name, address) WHERE place_id = ''`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id               ` + id + `,
			venue_id         BIGINT  NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
			name             TEXT    NOT NULL,
			theme            TEXT    NOT NULL,
			difficulty       INTEGER NOT NULL CHECK (difficulty BETWEEN 1 AND 5),
			min_players      INTEGER NOT NULL,
			max_players      INTEGER NOT NULL CHECK (min_players <= max_players),
			duration_minutes INTEGER NOT NULL,
			price            ` + num + `,
			description      TEXT    NOT NULL DEFAULT '',
			image_url        TEXT    NOT NULL DEFAULT '',
			UNIQUE (venue_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id            ` + id + `,
			venue_id      BIGINT  NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
			external_id   TEXT    NOT NULL DEFAULT '',
			author        TEXT    NOT NULL DEFAULT '',
			rating        INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			content       TEXT    NOT NULL DEFAULT '',
			relative_date TEXT    NOT NULL DEFAULT '',
			posted_at     ` + ts + `,
			helpful_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_venue ON reviews(venue_id, rating)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// rebind turns "?" placeholders into "$1", "$2", ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// SaveVenue inserts v or updates the stored row with the same place id
// (or, without one, the same name and address). It returns the row id.
// The upsert is a single statement, so concurrent saves of one venue
// converge on one row.
func (r *SQLRepository) SaveVenue(ctx context.Context, v *models.CrawledVenueData) (int64, error) {
	crawledAt := v.CrawledAt
	if crawledAt.IsZero() {
		crawledAt = time.Now()
	}
	target := `(name, address) WHERE place_id = ''`
	if v.PlaceID != "" {
		target = `(place_id) WHERE place_id <> ''`
	}

	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO venues (place_id, name, address, phone, website, category, category_match,
			rating, review_count, opening_hours, latitude, longitude, map_url,
			image_url, image_path, description, query, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT `+target+` DO UPDATE SET
			name = excluded.name, address = excluded.address, phone = excluded.phone,
			website = excluded.website, category = excluded.category,
			category_match = excluded.category_match, rating = excluded.rating,
			review_count = excluded.review_count, opening_hours = excluded.opening_hours,
			latitude = excluded.latitude, longitude = excluded.longitude, map_url = excluded.map_url,
			image_url = excluded.image_url, image_path = excluded.image_path,
			description = excluded.description, query = excluded.query, crawled_at = excluded.crawled_at
		RETURNING id`),
		v.PlaceID, v.Name, v.Address, v.Phone, v.Website, v.Category, v.CategoryMatch,
		nullable(v.Rating), nullable(v.ReviewCount), v.OpeningHours, nullable(v.Latitude), nullable(v.Longitude), v.MapURL,
		v.ImageURL, v.ImagePath, v.Description, v.Query, crawledAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: upsert venue: %w", r.driver, err)
	}
	return id, nil
}

// SaveRooms upserts rooms by (venue, name).
func (r *SQLRepository) SaveRooms(ctx context.Context, venueID int64, rooms []*models.CrawledRoomData) error {
	if len(rooms) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", r.driver, err)
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO rooms (venue_id, name, theme, difficulty, min_players, max_players,
			duration_minutes, price, description, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (venue_id, name) DO UPDATE SET
			theme = excluded.theme, difficulty = excluded.difficulty,
			min_players = excluded.min_players, max_players = excluded.max_players,
			duration_minutes = excluded.duration_minutes, price = excluded.price,
			description = excluded.description, image_url = excluded.image_url`)
	for _, room := range rooms {
		room.Normalise()
		if _, err := tx.ExecContext(ctx, query,
			venueID, room.Name, room.Theme, room.Difficulty, room.MinPlayers, room.MaxPlayers,
			room.DurationMinutes, nullable(room.Price), room.Description, room.ImageURL,
		); err != nil {
			return fmt.Errorf("%s: upsert room %q: %w", r.driver, room.Name, err)
		}
	}
	return tx.Commit()
}

// SaveReviews inserts reviews not already stored for the venue. A review
// counts as stored when one with the same content and rating exists; it
// returns how many were inserted.
func (r *SQLRepository) SaveReviews(ctx context.Context, venueID int64, reviews []*models.CrawledReviewData) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", r.driver, err)
	}
	defer tx.Rollback()

	exists := r.rebind(`SELECT 1 FROM reviews WHERE venue_id = ? AND content = ? AND rating = ? LIMIT 1`)
	insert := r.rebind(`
		INSERT INTO reviews (venue_id, external_id, author, rating, content, relative_date, posted_at, helpful_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	inserted := 0
	for _, rv := range reviews {
		if rv.Rating < 1 || rv.Rating > 5 {
			continue
		}
		var one int
		err := tx.QueryRowContext(ctx, exists, venueID, rv.Text, rv.Rating).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return inserted, fmt.Errorf("%s: check review: %w", r.driver, err)
		}
		var postedAt any
		if rv.PostedAt != nil {
			postedAt = rv.PostedAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, insert,
			venueID, rv.ExternalID, rv.Author, rv.Rating, rv.Text, rv.RelativeDate, postedAt, nullable(rv.HelpfulCount),
		); err != nil {
			return inserted, fmt.Errorf("%s: insert review: %w", r.driver, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.driver, err)
	}
	return inserted, nil
}

// Save stores a venue with its rooms and reviews.
func (r *SQLRepository) Save(ctx context.Context, v *models.CrawledVenueData) (int64, error) {
	id, err := r.SaveVenue(ctx, v)
	if err != nil {
		return 0, err
	}
	if err := r.SaveRooms(ctx, id, v.Rooms); err != nil {
		return id, err
	}
	if _, err := r.SaveReviews(ctx, id, v.Reviews); err != nil {
		return id, err
	}
	return id, nil
}

// FetchVenues loads every stored venue with its rooms and reviews, used by
// the report command.
func (r *SQLRepository) FetchVenues(ctx context.Context) ([]*models.CrawledVenueData, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, place_id, name, address, phone, website, category, category_match,
			rating, review_count, latitude, longitude, map_url, image_path, query
		FROM venues
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch venues: %w", r.driver, err)
	}
	defer rows.Close()

	var venues []*models.CrawledVenueData
	byID := make(map[int64]*models.CrawledVenueData)
	for rows.Next() {
		var (
			id          int64
			v           = &models.CrawledVenueData{}
			rating      sql.NullFloat64
			reviewCount sql.NullInt64
			lat, lng    sql.NullFloat64
		)
		if err := rows.Scan(&id, &v.PlaceID, &v.Name, &v.Address, &v.Phone, &v.Website, &v.Category,
			&v.CategoryMatch, &rating, &reviewCount, &lat, &lng, &v.MapURL, &v.ImagePath, &v.Query); err != nil {
			return nil, fmt.Errorf("%s: scan venue: %w", r.driver, err)
		}
		if rating.Valid {
			v.Rating = &rating.Float64
		}
		if reviewCount.Valid {
			n := int(reviewCount.Int64)
			v.ReviewCount = &n
		}
		if lat.Valid && lng.Valid {
			v.Latitude, v.Longitude = &lat.Float64, &lng.Float64
		}
		venues = append(venues, v)
		byID[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.fetchRooms(ctx, byID); err != nil {
		return nil, err
	}
	if err := r.fetchReviews(ctx, byID); err != nil {
		return nil, err
	}
	return venues, nil
}

func (r *SQLRepository) fetchRooms(ctx context.Context, byID map[int64]*models.CrawledVenueData) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT venue_id, name, theme, difficulty, min_players, max_players, duration_minutes,
			price, description, image_url
		FROM rooms
		ORDER BY id`)
	if err != nil {
		return fmt.Errorf("%s: fetch rooms: %w", r.driver, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			venueID int64
			room    = &models.CrawledRoomData{}
			price   sql.NullFloat64
		)
		if err := rows.Scan(&venueID, &room.Name, &room.Theme, &room.Difficulty, &room.MinPlayers,
			&room.MaxPlayers, &room.DurationMinutes, &price, &room.Description, &room.ImageURL); err != nil {
			return fmt.Errorf("%s: scan room: %w", r.driver, err)
		}
		if price.Valid {
			room.Price = &price.Float64
		}
		if v, ok := byID[venueID]; ok {
			v.Rooms = append(v.Rooms, room)
		}
	}
	return rows.Err()
}

func (r *SQLRepository) fetchReviews(ctx context.Context, byID map[int64]*models.CrawledVenueData) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT venue_id, external_id, author, rating, content, relative_date, helpful_count
		FROM reviews
		ORDER BY id`)
	if err != nil {
		return fmt.Errorf("%s: fetch reviews: %w", r.driver, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			venueID int64
			rv      = &models.CrawledReviewData{}
			helpful sql.NullInt64
		)
		if err := rows.Scan(&venueID, &rv.ExternalID, &rv.Author, &rv.Rating, &rv.Text,
			&rv.RelativeDate, &helpful); err != nil {
			return fmt.Errorf("%s: scan review: %w", r.driver, err)
		}
		if helpful.Valid {
			n := int(helpful.Int64)
			rv.HelpfulCount = &n
		}
		if v, ok := byID[venueID]; ok {
			v.Reviews = append(v.Reviews, rv)
		}
	}
	return rows.Err()
}

// nullable passes absent optional values as SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}
