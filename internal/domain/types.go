package domain

import (
	"time"
)

// Location is a point on the globe used for travel distance calculations.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Team represents a conference member. Teams are shared read-only references;
// the optimizer never mutates them.
type Team struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Location       Location `json:"location"`
	VenueIDs       []string `json:"venue_ids"`
	PrimaryVenueID string   `json:"primary_venue_id"`
	NoPlayOnSunday bool     `json:"no_play_on_sunday"`
	TravelZone     string   `json:"travel_zone,omitempty"`
}

// HasVenue reports whether the venue belongs to this team.
func (t *Team) HasVenue(venueID string) bool {
	for _, id := range t.VenueIDs {
		if id == venueID {
			return true
		}
	}
	return false
}

// Venue represents a playing facility, possibly shared between sports.
type Venue struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Location  Location `json:"location"`
	Capacity  int      `json:"capacity"`
	Sports    []string `json:"sports"`
	CoTenants []string `json:"co_tenants,omitempty"`
}

// SupportsSport reports whether the venue hosts the given sport. An empty
// sports list means the venue is unrestricted.
func (v *Venue) SupportsSport(sport string) bool {
	if len(v.Sports) == 0 {
		return true
	}
	for _, s := range v.Sports {
		if s == sport {
			return true
		}
	}
	return false
}

// Game is a single scheduled contest.
type Game struct {
	ID                  string    `json:"id"`
	Sport               string    `json:"sport"`
	HomeID              string    `json:"home"`
	AwayID              string    `json:"away"`
	VenueID             string    `json:"venue,omitempty"`
	Date                time.Time `json:"date"`
	Neutral             bool      `json:"neutral,omitempty"`
	Rivalry             bool      `json:"rivalry,omitempty"`
	LateSeasonPreferred bool      `json:"late_season_preferred,omitempty"`
	TVWindow            string    `json:"tv_window,omitempty"`
	SeriesID            string    `json:"series_id,omitempty"`
}

// Involves reports whether the team plays in this game.
func (g *Game) Involves(teamID string) bool {
	return g.HomeID == teamID || g.AwayID == teamID
}

// Schedule is a candidate assignment of games to dates and venues. The
// optimizer operates on deep clones; callers own the initial input and the
// final result.
type Schedule struct {
	ID           string            `json:"id"`
	Sport        string            `json:"sport"`
	Season       string            `json:"season"`
	Teams        map[string]*Team  `json:"-"`
	Venues       map[string]*Venue `json:"-"`
	Games        []Game            `json:"games"`
	SeasonStart  *time.Time        `json:"season_start,omitempty"`
	SeasonEnd    *time.Time        `json:"season_end,omitempty"`
	GamesPerTeam int               `json:"games_per_team,omitempty"`
	Meta         map[string]any    `json:"meta,omitempty"`
}

// HomeAway holds per-team home/away counts.
type HomeAway struct {
	Home int `json:"home"`
	Away int `json:"away"`
}
