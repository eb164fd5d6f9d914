package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"venue-crawler/models"
	"venue-crawler/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises crawled venues and the runs that produced them.
func (s *InsightService) Generate(venues []*models.CrawledVenueData, runs []models.RunSummary) *models.CrawlReport {
	report := &models.CrawlReport{
		Runs:         runs,
		RoomsByTheme: make(map[string]int),
	}

	if len(venues) == 0 {
		return report
	}

	report.TotalVenues = len(venues)

	var rated []*models.CrawledVenueData
	var ratingTotal, priceTotal float64
	var priced int

	for _, v := range venues {
		if v.Website != "" {
			report.VenuesWithSite++
		}
		if v.CategoryMatch {
			report.CategoryMatches++
		}
		if v.Rating != nil {
			rated = append(rated, v)
			ratingTotal += *v.Rating
		}
		report.TotalReviews += len(v.Reviews)
		for _, r := range v.Rooms {
			report.TotalRooms++
			report.RoomsByTheme[r.Theme]++
			if r.Price != nil && *r.Price > 0 {
				priceTotal += *r.Price
				priced++
			}
		}
	}

	report.RatedVenues = len(rated)
	if len(rated) > 0 {
		report.AverageRating = round2(ratingTotal / float64(len(rated)))
	}
	if priced > 0 {
		report.AverageRoomPrice = round2(priceTotal / float64(priced))
	}

	// Top 5 by rating, review count breaking ties
	sort.SliceStable(rated, func(i, j int) bool {
		if *rated[i].Rating != *rated[j].Rating {
			return *rated[i].Rating > *rated[j].Rating
		}
		return reviewCount(rated[i]) > reviewCount(rated[j])
	})
	if len(rated) > 5 {
		report.TopRated = rated[:5]
	} else {
		report.TopRated = rated
	}

	s.logger.Debug("[insights] %d venues, %d rooms, %d reviews", report.TotalVenues, report.TotalRooms, report.TotalReviews)
	return report
}

func reviewCount(v *models.CrawledVenueData) int {
	if v.ReviewCount == nil {
		return 0
	}
	return *v.ReviewCount
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.CrawlReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.CrawlReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🔐 VENUE CRAWL REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Runs
	if len(r.Runs) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Runs\033[0m\n")
		t := newTable(w)
		t.AppendHeader(table.Row{"Location", "Found", "Accepted", "Duplicates", "Failed", "Took", "Status"})
		for _, run := range r.Runs {
			status := "complete"
			if run.Partial {
				status = "partial"
			}
			t.AppendRow(table.Row{
				truncate(run.Location, 30), run.Found, run.Accepted, run.SkippedDuplicate, run.Failed,
				run.Duration.Round(time.Second), status,
			})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Venues crawled         : \033[1m%d\033[0m\n", r.TotalVenues)
	fmt.Fprintf(w, "  With a website        : \033[1m%d\033[0m\n", r.VenuesWithSite)
	fmt.Fprintf(w, "  Category matches      : \033[1m%d\033[0m\n", r.CategoryMatches)
	fmt.Fprintf(w, "  Reviews collected     : \033[1m%d\033[0m\n", r.TotalReviews)
	if r.RatedVenues > 0 {
		fmt.Fprintf(w, "  Average rating        : \033[1;32m%.2f ★\033[0m (%d rated)\n", r.AverageRating, r.RatedVenues)
	}
	fmt.Fprintln(w)

	// ── TOP 5 HIGHEST RATED ──────────────────────────────────────────────
	fmt.Fprintf(w, "\033[1;33m  Top 5 Highest Rated Venues\033[0m\n")
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  %s\n  No rated venues found\n", thin)
	} else {
		t := newTable(w)
		t.AppendHeader(table.Row{"#", "Venue", "Rating", "Reviews"})
		for i, v := range r.TopRated {
			t.AppendRow(table.Row{i + 1, truncate(v.Name, 40), fmt.Sprintf("%.1f ★", *v.Rating), reviewCount(v)})
		}
		t.Render()
	}
	fmt.Fprintln(w)

	// Rooms by theme
	fmt.Fprintf(w, "\033[1;33m  Rooms by Theme\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalRooms == 0 {
		fmt.Fprintf(w, "  No rooms extracted\n")
	} else {
		type themeCount struct {
			theme string
			count int
		}
		var themes []themeCount
		for theme, cnt := range r.RoomsByTheme {
			themes = append(themes, themeCount{theme, cnt})
		}
		sort.Slice(themes, func(i, j int) bool {
			if themes[i].count != themes[j].count {
				return themes[i].count > themes[j].count
			}
			return themes[i].theme < themes[j].theme
		})
		for _, tc := range themes {
			bar := strings.Repeat("█", tc.count)
			fmt.Fprintf(w, "  %-14s %s (%d)\n", truncate(tc.theme, 14), bar, tc.count)
		}
		if r.AverageRoomPrice > 0 {
			fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AverageRoomPrice)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
