package handlers

import (
	"time"

	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// SchedulePayload is the wire form of a schedule: teams and venues travel as
// arrays, games as records with ISO-8601 UTC dates.
type SchedulePayload struct {
	ID           string         `json:"id"`
	Sport        string         `json:"sport"`
	Season       string         `json:"season"`
	Teams        []domain.Team  `json:"teams"`
	Venues       []domain.Venue `json:"venues"`
	Games        []domain.Game  `json:"games"`
	SeasonStart  *time.Time     `json:"season_start,omitempty"`
	SeasonEnd    *time.Time     `json:"season_end,omitempty"`
	GamesPerTeam int            `json:"games_per_team,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// ToDomain builds the in-memory schedule from the wire form.
func (p *SchedulePayload) ToDomain() *domain.Schedule {
	s := &domain.Schedule{
		ID:           p.ID,
		Sport:        p.Sport,
		Season:       p.Season,
		Teams:        make(map[string]*domain.Team, len(p.Teams)),
		Venues:       make(map[string]*domain.Venue, len(p.Venues)),
		Games:        p.Games,
		SeasonStart:  p.SeasonStart,
		SeasonEnd:    p.SeasonEnd,
		GamesPerTeam: p.GamesPerTeam,
		Meta:         p.Meta,
	}
	for i := range p.Teams {
		t := p.Teams[i]
		s.Teams[t.ID] = &t
	}
	for i := range p.Venues {
		v := p.Venues[i]
		s.Venues[v.ID] = &v
	}
	s.SortGames()
	return s
}

// FromDomain renders a schedule back to the wire form.
func FromDomain(s *domain.Schedule) SchedulePayload {
	p := SchedulePayload{
		ID:           s.ID,
		Sport:        s.Sport,
		Season:       s.Season,
		Teams:        make([]domain.Team, 0, len(s.Teams)),
		Venues:       make([]domain.Venue, 0, len(s.Venues)),
		Games:        s.Games,
		SeasonStart:  s.SeasonStart,
		SeasonEnd:    s.SeasonEnd,
		GamesPerTeam: s.GamesPerTeam,
		Meta:         s.Meta,
	}
	for _, id := range s.TeamIDs() {
		p.Teams = append(p.Teams, *s.Teams[id])
	}
	for _, id := range s.VenueIDs() {
		p.Venues = append(p.Venues, *s.Venues[id])
	}
	return p
}
