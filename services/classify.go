package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"venue-crawler/models"
)

// BoilerplateNames are site-chrome phrases that are never room names.
// Matching is case-insensitive and exact on the trimmed text.
var BoilerplateNames = []string{
	"home", "about", "about us", "our story", "contact", "contact us",
	"book", "book now", "book online", "booking", "bookings", "buy now",
	"gift card", "gift cards", "gift certificates", "vouchers",
	"login", "log in", "sign in", "sign up", "register", "my account", "cart",
	"faq", "faqs", "help", "menu", "search", "blog", "news", "careers", "jobs",
	"privacy", "privacy policy", "terms", "terms and conditions", "waiver",
	"pricing", "prices", "rates", "hours", "location", "locations", "directions",
	"rooms", "our rooms", "games", "our games", "escape rooms", "experiences",
	"team building", "corporate events", "parties", "birthday parties", "events",
	"reviews", "testimonials", "gallery", "follow us", "newsletter",
	"how it works", "what is an escape room", "read more", "learn more", "more info",
}

// RoomKeywords mark a heading or card title as escape-room content.
var RoomKeywords = []string{
	"escape", "mission", "adventure", "mystery", "vault", "heist", "quest",
	"curse", "lab", "prison", "cell", "tomb", "temple", "secret", "room",
	"agent", "detective", "haunted", "conspiracy", "expedition", "chamber",
}

// VenuePlaceholders are result-list labels that are not venue names.
var VenuePlaceholders = []string{"results", "sponsored", "sponsored?", "ad", "ads"}

// VenueCategoryKeywords signal that a map result is an escape room or game
// venue. The signal is recorded on the venue; it does not filter results.
var VenueCategoryKeywords = []string{
	"escape", "room", "puzzle", "board game", "game cafe", "game café",
	"games", "mystery", "adventure", "quest", "amusement", "entertainment",
	"virtual reality", "experience",
}

// ThemeRule maps any of its keywords to a theme.
type ThemeRule struct {
	Theme    string
	Keywords []string
}

// ThemeRules are scanned in order against the lowercased name and
// description; the first rule with a matching keyword wins.
var ThemeRules = []ThemeRule{
	{"Horror", []string{"zombie", "horror", "haunted", "ghost", "asylum", "curse", "demon", "killer", "blood", "nightmare", "possessed", "exorcis", "undead", "vampire"}},
	{"Mystery", []string{"mystery", "detective", "murder", "sherlock", "clue", "investigat", "whodunit", "crime scene"}},
	{"Adventure", []string{"adventure", "jungle", "pirate", "treasure", "temple", "expedition", "tomb", "quest", "lost city"}},
	{"Sci-Fi", []string{"space", "alien", "robot", "cyber", "galaxy", "spaceship", "laboratory", "time machine", "future", "virus"}},
	{"Fantasy", []string{"wizard", "magic", "dragon", "fairy", "witch", "enchanted", "potion", "sorcer", "alchemist"}},
	{"Heist", []string{"heist", "bank", "vault", "robbery", "casino", "diamond", "steal", "museum"}},
	{"Prison", []string{"prison", "jail", "cell block", "alcatraz", "inmate", "penitentiary"}},
	{"Spy", []string{"spy", "agent", "secret service", "espionage", "007", "kgb", "bomb"}},
	{"Historical", []string{"egypt", "pharaoh", "medieval", "victorian", "ancient", "titanic", "viking", "history", "1920", "wild west"}},
}

// DifficultyRule maps a text pattern to a difficulty level.
type DifficultyRule struct {
	Pattern *regexp.Regexp
	Level   int // 0 means "take the level from the first capture group"
}

// DifficultyRules are evaluated in order against card text.
var DifficultyRules = []DifficultyRule{
	{regexp.MustCompile(`(?i)difficulty\W{0,3}([1-5])\s*(?:/|out of)\s*5`), 0},
	{regexp.MustCompile(`(?i)\b(?:expert|extreme|insane|very hard)\b`), 5},
	{regexp.MustCompile(`(?i)\b(?:hard|difficult|challenging|advanced)\b`), 4},
	{regexp.MustCompile(`(?i)\b(?:medium|intermediate|moderate)\b`), 3},
	{regexp.MustCompile(`(?i)\b(?:easy|beginner|beginners|family friendly)\b`), 2},
}

func lowerSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, s := range list {
		m[strings.ToLower(s)] = struct{}{}
	}
	return m
}

var (
	boilerplateSet = lowerSet(BoilerplateNames)
	placeholderSet = lowerSet(VenuePlaceholders)
)

// IsPlausibleRoomName reports whether text looks like a room or game title
// rather than navigation or marketing text.
func IsPlausibleRoomName(name string) bool {
	name = NormaliseText(name)
	n := len([]rune(name))
	if n < 3 || n > 100 {
		return false
	}
	lower := strings.ToLower(name)
	if _, deny := boilerplateSet[strings.Trim(lower, " .:!|»›>")]; deny {
		return false
	}
	if containsAny(lower, RoomKeywords) {
		return true
	}
	if strings.IndexFunc(name, unicode.IsDigit) >= 0 {
		return false
	}
	return len(strings.Fields(name)) <= 6
}

// IsPlausibleVenueName rejects empty names and result-list placeholders.
func IsPlausibleVenueName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	_, placeholder := placeholderSet[strings.ToLower(name)]
	return !placeholder
}

// MatchesVenueCategory reports whether the name or category text carries a
// domain keyword.
func MatchesVenueCategory(name, category string) bool {
	return containsAny(strings.ToLower(name+" "+category), VenueCategoryKeywords)
}

// InferTheme returns the theme of the first matching rule, or the default.
func InferTheme(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range ThemeRules {
		if containsAny(lower, rule.Keywords) {
			return rule.Theme
		}
	}
	return models.DefaultTheme
}

// InferDifficulty scans text with DifficultyRules; the default is returned
// when nothing matches.
func InferDifficulty(text string) int {
	for _, rule := range DifficultyRules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if rule.Level > 0 {
			return rule.Level
		}
		if len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 5 {
				return n
			}
		}
	}
	return models.DefaultDifficulty
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
