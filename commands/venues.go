package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"venue-crawler/browser"
	"venue-crawler/models"
	"venue-crawler/scraper"
	"venue-crawler/scraper/maps"
	"venue-crawler/scraper/website"
	"venue-crawler/services"
	"venue-crawler/storage"
	"venue-crawler/utils"
)

var (
	maxResults   int
	subject      string
	withRooms    bool
	withReviews  bool
	skipDatabase bool
)

func init() {
	venuesCmd.Flags().IntVar(&maxResults, "max-results", 0, "accepted venues per location (0 = unbounded)")
	venuesCmd.Flags().StringVar(&subject, "subject", "", "what to search for, e.g. \"board game cafe\"")
	venuesCmd.Flags().BoolVar(&withRooms, "rooms", true, "also extract rooms from each venue website")
	venuesCmd.Flags().BoolVar(&withReviews, "reviews", true, "extract recent reviews from the detail panel")
	venuesCmd.Flags().BoolVar(&skipDatabase, "no-db", false, "do not persist results")
	rootCmd.AddCommand(venuesCmd)
}

var venuesCmd = &cobra.Command{
	Use:   "venues <location> [location...]",
	Short: "Searches the map for venues in each location and stores what it finds.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("max-results") {
			cfg.MaxResults = maxResults
		}
		if cmd.Flags().Changed("subject") {
			cfg.SearchSubject = subject
		}
		if cmd.Flags().Changed("reviews") {
			cfg.ExtractReviews = withReviews
		}
		return runVenues(cmd.Context(), args)
	},
}

// crawlResult collects the output of one location task.
type crawlResult struct {
	venues  []*models.CrawledVenueData
	summary models.RunSummary
}

func runVenues(ctx context.Context, locations []string) error {
	logger.Info("=== Venue crawl starting ===")
	logger.Info("Config: subject %q | max results: %d | concurrency: %d | rate: %dms | rooms via %s",
		cfg.SearchSubject, cfg.MaxResults, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.RoomFetchMode)

	var repo storage.VenueRepository
	if !skipDatabase {
		sqlRepo, err := storage.OpenRepository(ctx, cfg.DBDriver, dsn(), retryConfig())
		if err != nil {
			logger.Error("Failed to open %s database: %v", cfg.DBDriver, err)
			if cfg.DBDriver == storage.DriverPostgres {
				logger.Error("Make sure Docker is running: docker compose up -d")
			}
			return err
		}
		repo = sqlRepo
		defer repo.Close()
	}

	var raw storage.RawVenueWriter
	raw, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		return fmt.Errorf("create CSV writer: %w", err)
	}
	defer raw.Close()

	images := storage.NewFileImageStore(cfg.ImageDir, cfg.UserAgent, 30*time.Second, retryConfig())

	var (
		mu      sync.Mutex
		results []crawlResult
	)
	pool := utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs)
	for _, loc := range locations {
		loc := loc
		submitted := pool.Submit(ctx, func() {
			res := crawlLocation(ctx, loc, images)
			if repo != nil {
				persist(ctx, repo, res.venues)
			}
			if err := raw.WriteRaw(res.venues); err != nil {
				logger.Error("CSV write failed for %s: %v", loc, err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
		if !submitted {
			logger.Warn("Crawl cancelled before %s started", loc)
		}
	}
	pool.Wait()

	// Neighbouring locations can surface the same venue; count it once.
	var all []*models.CrawledVenueData
	var runs []models.RunSummary
	seen := make(map[string]bool)
	for _, r := range results {
		runs = append(runs, r.summary)
		for _, v := range r.venues {
			if !seen[v.Key()] {
				seen[v.Key()] = true
				all = append(all, v)
			}
		}
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(all, runs))

	fmt.Printf("  Done. Raw CSV → %s | Images → %s | Data → %s\n\n", cfg.CSVOutputPath, cfg.ImageDir, cfg.DBDriver)
	return nil
}

// crawlLocation runs one map session on its own browser, then visits the
// websites of the accepted venues.
func crawlLocation(ctx context.Context, location string, images maps.ImageStore) crawlResult {
	log := logger.With("location", location)
	res := crawlResult{summary: models.RunSummary{Location: location}}

	chrome, err := browser.Launch(ctx, browserOptions())
	if err != nil {
		log.Error("browser launch failed: %v", err)
		res.summary.Partial = true
		return res
	}
	defer chrome.Close()

	page, err := chrome.NewPage()
	if err != nil {
		log.Error("open tab failed: %v", err)
		res.summary.Partial = true
		return res
	}
	defer page.Close()

	reporter := scraper.LogReporter{Logger: log}
	session := maps.NewSession(page, images, sessionOptions(), log, reporter)
	res.venues, res.summary = session.Run(ctx, location)

	if withRooms {
		for _, v := range res.venues {
			if ctx.Err() != nil {
				break
			}
			if v.Website == "" {
				continue
			}
			v.Rooms = extractRooms(ctx, chrome, v.Website, log, reporter)
		}
	}
	return res
}

// extractRooms crawls one venue site on a fresh page, released on return.
func extractRooms(ctx context.Context, chrome *browser.Chrome, siteURL string, log *utils.Logger, reporter scraper.Reporter) []*models.CrawledRoomData {
	page, err := roomPage(chrome)
	if err != nil {
		log.Warn("rooms for %s skipped: %v", siteURL, err)
		return nil
	}
	defer page.Close()
	return website.NewExtractor(page, log, reporter, cfg.MaxRetries).Extract(ctx, siteURL)
}

// roomPage returns a plain HTTP page in http mode, else a new browser tab.
func roomPage(chrome *browser.Chrome) (browser.Page, error) {
	if cfg.RoomFetchMode == "http" || chrome == nil {
		return browser.NewStatic(browser.NewHTTPFetcher(cfg.UserAgent, cfg.NavTimeout)), nil
	}
	return chrome.NewPage()
}

func persist(ctx context.Context, repo storage.VenueRepository, venues []*models.CrawledVenueData) {
	for _, v := range venues {
		if _, err := repo.Save(ctx, v); err != nil {
			logger.Error("Failed to store %q: %v", v.Name, err)
		}
	}
}

func browserOptions() browser.Options {
	return browser.Options{
		ExecPath:   cfg.ChromeBin,
		Headless:   cfg.Headless,
		UserAgent:  cfg.UserAgent,
		NavTimeout: cfg.NavTimeout,
	}
}

func sessionOptions() maps.Options {
	return maps.Options{
		Subject:        cfg.SearchSubject,
		BaseURL:        cfg.SearchBaseURL,
		MaxResults:     cfg.MaxResults,
		ScrollCycles:   cfg.ScrollCycles,
		ScrollWait:     cfg.ScrollWait,
		FeedTimeout:    cfg.FeedTimeout,
		FieldTimeout:   cfg.FieldTimeout,
		DetailTimeout:  cfg.DetailTimeout,
		ConsentSettle:  time.Second,
		ExtractReviews: cfg.ExtractReviews,
		MaxReviews:     cfg.MaxReviews,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     2 * time.Second,
	}
}
