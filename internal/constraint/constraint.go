package constraint

import (
	"fmt"
)

// Kind identifies a constraint type from the closed enumeration.
type Kind string

const (
	TeamRest                Kind = "TEAM_REST"
	VenueAvailability       Kind = "VENUE_AVAILABILITY"
	ReligiousDayRestriction Kind = "RELIGIOUS_DAY_RESTRICTION"
	ChampionshipDates       Kind = "CHAMPIONSHIP_DATES"
	SeriesStructure         Kind = "SERIES_STRUCTURE"
	WeatherWindow           Kind = "WEATHER_WINDOW"
	TVBroadcastMandatory    Kind = "TV_BROADCAST_MANDATORY"
	TravelDistance          Kind = "TRAVEL_DISTANCE"
	HomeAwayBalance         Kind = "HOME_AWAY_BALANCE"
	ConsecutiveHomeGames    Kind = "CONSECUTIVE_HOME_GAMES"
	ConsecutiveAwayGames    Kind = "CONSECUTIVE_AWAY_GAMES"
	TVBroadcastPreferred    Kind = "TV_BROADCAST_PREFERRED"
	RivalryGame             Kind = "RIVALRY_GAME"
	WeekendDistribution     Kind = "WEEKEND_DISTRIBUTION"
	FanTravelPreference     Kind = "FAN_TRAVEL_PREFERENCE"
)

// Hardness classifies how strictly a constraint binds.
type Hardness string

const (
	Hard       Hardness = "hard"
	Soft       Hardness = "soft"
	Preference Hardness = "preference"
)

// rank orders hardness for stable constraint sorting: hard < soft < preference.
func (h Hardness) Rank() int {
	switch h {
	case Hard:
		return 0
	case Soft:
		return 1
	case Preference:
		return 2
	default:
		return 3
	}
}

// Constraint is an immutable scheduling rule. The engine evaluates it against
// a schedule to produce a result; it never mutates the constraint. Weighted
// copies are derived per run.
type Constraint struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"kind"`
	Hardness     Hardness       `json:"hardness"`
	BasePriority int            `json:"base_priority"`
	Category     string         `json:"category"`
	Weight       float64        `json:"weight"`
	Params       map[string]any `json:"params,omitempty"`
	Sports       []string       `json:"sports,omitempty"`
	Teams        []string       `json:"teams,omitempty"`
	Source       string         `json:"source,omitempty"`
}

// Definition holds the library defaults for one constraint kind.
type Definition struct {
	Kind         Kind
	Hardness     Hardness
	BasePriority int
	Category     string
}

// definitions is the closed constraint library: every supported kind with its
// default hardness, base priority and category.
var definitions = map[Kind]Definition{
	TeamRest:                {TeamRest, Hard, 100, "scheduling"},
	VenueAvailability:       {VenueAvailability, Hard, 95, "facilities"},
	ReligiousDayRestriction: {ReligiousDayRestriction, Hard, 90, "religious"},
	ChampionshipDates:       {ChampionshipDates, Hard, 80, "tournament"},
	SeriesStructure:         {SeriesStructure, Hard, 95, "structure"},
	WeatherWindow:           {WeatherWindow, Hard, 90, "temporal"},
	TVBroadcastMandatory:    {TVBroadcastMandatory, Hard, 85, "media"},
	TravelDistance:          {TravelDistance, Soft, 70, "logistics"},
	HomeAwayBalance:         {HomeAwayBalance, Soft, 65, "fairness"},
	ConsecutiveHomeGames:    {ConsecutiveHomeGames, Soft, 60, "balance"},
	ConsecutiveAwayGames:    {ConsecutiveAwayGames, Soft, 60, "balance"},
	TVBroadcastPreferred:    {TVBroadcastPreferred, Soft, 55, "media"},
	RivalryGame:             {RivalryGame, Soft, 50, "tradition"},
	WeekendDistribution:     {WeekendDistribution, Soft, 45, "attendance"},
	FanTravelPreference:     {FanTravelPreference, Preference, 30, "fan_experience"},
}

// LookupDefinition returns the library defaults for a kind.
func LookupDefinition(kind Kind) (Definition, error) {
	def, ok := definitions[kind]
	if !ok {
		return Definition{}, fmt.Errorf("unknown constraint kind: %s", kind)
	}
	return def, nil
}

// KnownKind reports whether the kind belongs to the closed enumeration.
func KnownKind(kind Kind) bool {
	_, ok := definitions[kind]
	return ok
}

// AllKinds returns every kind in the library in stable priority order.
func AllKinds() []Kind {
	kinds := []Kind{
		TeamRest, VenueAvailability, ReligiousDayRestriction, ChampionshipDates,
		SeriesStructure, WeatherWindow, TVBroadcastMandatory, TravelDistance,
		HomeAwayBalance, ConsecutiveHomeGames, ConsecutiveAwayGames,
		TVBroadcastPreferred, RivalryGame, WeekendDistribution, FanTravelPreference,
	}
	return kinds
}

// New builds a constraint of the given kind with library defaults and the
// supplied parameters. Weight defaults to 1.0.
func New(id string, kind Kind, params map[string]any) (Constraint, error) {
	def, err := LookupDefinition(kind)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{
		ID:           id,
		Kind:         kind,
		Hardness:     def.Hardness,
		BasePriority: def.BasePriority,
		Category:     def.Category,
		Weight:       1.0,
		Params:       params,
	}, nil
}

// AppliesTo reports whether the constraint is in scope for the sport. An
// empty sports list applies to all sports.
func (c *Constraint) AppliesTo(sport string) bool {
	if len(c.Sports) == 0 {
		return true
	}
	for _, s := range c.Sports {
		if s == sport {
			return true
		}
	}
	return false
}

// AppliesToTeam reports whether the constraint is in scope for the team. An
// empty teams list applies to all teams.
func (c *Constraint) AppliesToTeam(teamID string) bool {
	if len(c.Teams) == 0 {
		return true
	}
	for _, t := range c.Teams {
		if t == teamID {
			return true
		}
	}
	return false
}

// Specificity counts scope restrictions; a constraint scoped to particular
// sports or teams is more specific than an unscoped one.
func (c *Constraint) Specificity() int {
	return len(c.Sports) + len(c.Teams)
}

// ParamFloat reads a numeric parameter, tolerating int and float64 values
// from decoded JSON. Returns the fallback when absent.
func (c *Constraint) ParamFloat(key string, fallback float64) float64 {
	if c.Params == nil {
		return fallback
	}
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// ParamString reads a string parameter with a fallback.
func (c *Constraint) ParamString(key, fallback string) string {
	if c.Params == nil {
		return fallback
	}
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return fallback
}
