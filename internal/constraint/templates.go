package constraint

import (
	"fmt"
)

// TemplateParams carries the tunable knobs for constraint templates.
type TemplateParams struct {
	Sport          string  `json:"sport"`
	MinRestDays    float64 `json:"min_rest_days,omitempty"`
	MaxTravelMiles float64 `json:"max_travel_miles,omitempty"`
	SeriesLength   int     `json:"series_length,omitempty"`
	SeriesCount    int     `json:"series_count,omitempty"`
	WeatherStart   string  `json:"weather_start,omitempty"` // "MM-DD"
	WeatherEnd     string  `json:"weather_end,omitempty"`
}

// Template expands a named scenario into a pre-configured constraint list.
// Templates are pure functions of their parameters.
func Template(name string, params TemplateParams) ([]Constraint, error) {
	switch name {
	case "conference_round_robin":
		return roundRobinTemplate(params), nil
	case "weekend_three_game_series":
		return weekendSeriesTemplate(params), nil
	case "tv_season":
		return tvSeasonTemplate(params), nil
	default:
		return nil, fmt.Errorf("unknown constraint template: %s", name)
	}
}

// TemplateNames lists the supported template names.
func TemplateNames() []string {
	return []string{"conference_round_robin", "weekend_three_game_series", "tv_season"}
}

func roundRobinTemplate(params TemplateParams) []Constraint {
	minRest := params.MinRestDays
	if minRest <= 0 {
		minRest = 1
	}
	maxTravel := params.MaxTravelMiles
	if maxTravel <= 0 {
		maxTravel = 1200
	}

	return buildAll(params.Sport, "template:conference_round_robin", []kindParams{
		{TeamRest, map[string]any{"min_days": minRest}},
		{VenueAvailability, nil},
		{HomeAwayBalance, map[string]any{"max_deviation": 0.1}},
		{TravelDistance, map[string]any{"max_miles": maxTravel}},
		{ConsecutiveHomeGames, map[string]any{"max_run": 3}},
		{ConsecutiveAwayGames, map[string]any{"max_run": 3}},
		{WeekendDistribution, map[string]any{"min_weekend_ratio": 0.4}},
	})
}

func weekendSeriesTemplate(params TemplateParams) []Constraint {
	length := params.SeriesLength
	if length <= 0 {
		length = 3
	}
	count := params.SeriesCount
	if count <= 0 {
		count = 10
	}
	weatherStart := params.WeatherStart
	if weatherStart == "" {
		weatherStart = "02-15"
	}
	weatherEnd := params.WeatherEnd
	if weatherEnd == "" {
		weatherEnd = "06-15"
	}

	return buildAll(params.Sport, "template:weekend_three_game_series", []kindParams{
		{SeriesStructure, map[string]any{
			"series_length": length,
			"series_count":  count,
			"days":          []string{"Friday", "Saturday", "Sunday"},
		}},
		{WeatherWindow, map[string]any{"start": weatherStart, "end": weatherEnd}},
		// Series games run on consecutive days, so no rest gap applies.
		{TeamRest, map[string]any{"min_days": 0.0}},
		{HomeAwayBalance, map[string]any{"max_deviation": 0.15}},
	})
}

func tvSeasonTemplate(params TemplateParams) []Constraint {
	return buildAll(params.Sport, "template:tv_season", []kindParams{
		{TVBroadcastMandatory, map[string]any{"window": "primetime"}},
		{TVBroadcastPreferred, map[string]any{"window": "weekend_afternoon"}},
		{RivalryGame, map[string]any{"late_season_fraction": 0.25}},
	})
}

type kindParams struct {
	kind   Kind
	params map[string]any
}

func buildAll(sport, source string, specs []kindParams) []Constraint {
	out := make([]Constraint, 0, len(specs))
	for _, spec := range specs {
		// Library kinds only; New cannot fail here.
		c, _ := New("", spec.kind, spec.params)
		if sport != "" {
			c.Sports = []string{sport}
		}
		c.Source = source
		out = append(out, c)
	}
	return out
}
