package storage

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-crawler/models"
	"venue-crawler/utils"
)

func ptr[T any](v T) *T { return &v }

func openMemory(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := OpenRepository(context.Background(), DriverSQLite, ":memory:", utils.RetryConfig{MaxAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleVenue() *models.CrawledVenueData {
	return &models.CrawledVenueData{
		Name:          "Puzzle Vault",
		Address:       "12 Main St",
		PlaceID:       "0x1:0x2",
		Category:      "Escape room center",
		CategoryMatch: true,
		Rating:        ptr(4.8),
		ReviewCount:   ptr(120),
		Latitude:      ptr(39.78),
		Longitude:     ptr(-89.65),
		CrawledAt:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Rooms: []*models.CrawledRoomData{
			{Name: "Zombie Lab", Theme: "Horror", Difficulty: 4, MinPlayers: 2, MaxPlayers: 8, DurationMinutes: 60, Price: ptr(30.0)},
		},
		Reviews: []*models.CrawledReviewData{
			{ExternalID: "r1", Author: "Alex", Rating: 5, Text: "Great"},
		},
	}
}

func TestRepositoryUpsertsVenueByPlaceID(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	id1, err := repo.Save(ctx, sampleVenue())
	require.NoError(t, err)

	again := sampleVenue()
	again.Name = "Puzzle Vault Escapes"
	again.Rating = ptr(4.9)
	id2, err := repo.Save(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	venues, err := repo.FetchVenues(ctx)
	require.NoError(t, err)
	require.Len(t, venues, 1)
	v := venues[0]
	assert.Equal(t, "Puzzle Vault Escapes", v.Name)
	require.NotNil(t, v.Rating)
	assert.Equal(t, 4.9, *v.Rating)
	assert.True(t, v.CategoryMatch)
	require.Len(t, v.Rooms, 1, "room upserted by venue and name")
	assert.Len(t, v.Reviews, 1, "identical review is not stored twice")
}

func TestRepositoryMatchesByNameAndAddressWithoutPlaceID(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	a := &models.CrawledVenueData{Name: "Clue Cabin", Address: "1 Log Rd"}
	b := &models.CrawledVenueData{Name: "Clue Cabin", Address: "9 Other St"}
	idA, err := repo.SaveVenue(ctx, a)
	require.NoError(t, err)
	idA2, err := repo.SaveVenue(ctx, &models.CrawledVenueData{Name: "Clue Cabin", Address: "1 Log Rd", Phone: "555"})
	require.NoError(t, err)
	idB, err := repo.SaveVenue(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, idA, idA2)
	assert.NotEqual(t, idA, idB)

	venues, err := repo.FetchVenues(ctx)
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "555", venues[0].Phone)
	assert.Nil(t, venues[0].Rating)
}

func TestRepositoryConcurrentSavesConvergeOnOneVenue(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.SaveVenue(ctx, sampleVenue())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	venues, err := repo.FetchVenues(ctx)
	require.NoError(t, err)
	assert.Len(t, venues, 1)

	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO venues (place_id, name, crawled_at) VALUES ('0x1:0x2', 'Copy', CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "place id is unique")
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO venues (name, crawled_at) VALUES ('Puzzle Vault', CURRENT_TIMESTAMP), ('Puzzle Vault', CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "name and address are unique without a place id")
}

func TestRepositoryReviewDeduplication(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	id, err := repo.SaveVenue(ctx, sampleVenue())
	require.NoError(t, err)

	n, err := repo.SaveReviews(ctx, id, []*models.CrawledReviewData{
		{Author: "A", Rating: 5, Text: "Great"},
		{Author: "B", Rating: 5, Text: "Great"},
		{Author: "C", Rating: 4, Text: "Great"},
		{Author: "D", Rating: 5, Text: "Great!"},
		{Author: "E", Rating: 0, Text: "no stars"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "exact content and rating repeats are skipped; near duplicates are kept")

	n, err = repo.SaveReviews(ctx, id, []*models.CrawledReviewData{{Author: "A", Rating: 5, Text: "Great"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepositoryRoomUpsertNormalises(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	id, err := repo.SaveVenue(ctx, sampleVenue())
	require.NoError(t, err)

	require.NoError(t, repo.SaveRooms(ctx, id, []*models.CrawledRoomData{{Name: "Vault", MinPlayers: 8, MaxPlayers: 3, Difficulty: 9}}))
	require.NoError(t, repo.SaveRooms(ctx, id, []*models.CrawledRoomData{{Name: "Vault", Theme: "Heist", Price: ptr(25.0)}}))

	venues, err := repo.FetchVenues(ctx)
	require.NoError(t, err)
	require.Len(t, venues[0].Rooms, 1)
	r := venues[0].Rooms[0]
	assert.Equal(t, "Heist", r.Theme)
	assert.Equal(t, models.DefaultDifficulty, r.Difficulty)
	require.NotNil(t, r.Price)
	assert.Equal(t, 25.0, *r.Price)
}

func TestOpenRepositoryUnknownDriver(t *testing.T) {
	_, err := OpenRepository(context.Background(), "mysql", "", utils.RetryConfig{})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &SQLRepository{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.WriteRaw([]*models.CrawledVenueData{sampleVenue(), {Name: "Bare"}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Puzzle Vault", rows[1][2])
	assert.Equal(t, "4.8", rows[1][8])
	assert.Equal(t, "1", rows[1][16])
	assert.Equal(t, "", rows[2][8], "absent rating is an empty cell")
}

func TestFileImageStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "images")
	store := NewFileImageStore(dir, "test-agent", 5*time.Second, utils.RetryConfig{MaxAttempts: 1})
	ctx := context.Background()

	path, err := store.Save(ctx, srv.URL+"/a.png", "puzzle-vault")
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.Contains(t, filepath.Base(path), "puzzle-vault-")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data)

	_, err = store.Save(ctx, srv.URL+"/missing.jpg", "x")
	assert.Error(t, err)
	_, err = store.Save(ctx, srv.URL+"/page", "x")
	assert.Error(t, err)
}
