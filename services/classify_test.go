package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlausibleRoomName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Escape from Cell Block 9", true},
		{"Escape the Mansion", true},
		{"The Pharaoh's Tomb", true},
		{"Midnight Carnival", true},
		{"Book Now", false},
		{"FAQ", false},
		{"About Us", false},
		{"Contact", false},
		{"  gift cards  ", false},
		{"ab", false},
		{"Open 7 days a week", false},
		{"Join us for an unforgettable evening full of fun and games with friends", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPlausibleRoomName(tt.name), tt.name)
	}
}

func TestIsPlausibleVenueName(t *testing.T) {
	assert.True(t, IsPlausibleVenueName("Puzzle Palace Escape Rooms"))
	assert.False(t, IsPlausibleVenueName(""))
	assert.False(t, IsPlausibleVenueName("Results"))
	assert.False(t, IsPlausibleVenueName("sponsored"))
}

func TestMatchesVenueCategory(t *testing.T) {
	assert.True(t, MatchesVenueCategory("Lockdown LA", "Escape room center"))
	assert.True(t, MatchesVenueCategory("Meeple Board Game Cafe", ""))
	assert.False(t, MatchesVenueCategory("Joe's Pizza", "Pizza restaurant"))
}

func TestInferTheme(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Zombie Outbreak Lab", "Horror"},
		{"The Great Heist", "Heist"},
		{"The Blue Door", "Mystery"},
		{"Pirate's Treasure", "Adventure"},
		{"Alien Spaceship", "Sci-Fi"},
		{"The Wizard's Study", "Fantasy"},
		{"Alcatraz Breakout", "Prison"},
		{"Agent 47 Briefing", "Spy"},
		{"Curse of the Pharaoh", "Horror"},
		{"Tomb of the Pharaoh", "Adventure"},
		{"Victorian Parlour", "Historical"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferTheme(tt.text), tt.text)
	}
}

func TestInferDifficulty(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Difficulty: 4/5", 4},
		{"Expert level only", 5},
		{"This one is HARD", 4},
		{"Medium difficulty", 3},
		{"Easy and family friendly", 2},
		{"No hints here", 3},
		{"Hardwood floors", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferDifficulty(tt.text), tt.text)
	}
}
