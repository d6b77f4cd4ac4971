package constraint

// sportMultipliers amplifies or dampens constraint weights per sport. Sports
// not listed use 1.0 for every kind.
var sportMultipliers = map[string]map[Kind]float64{
	"football": {
		TeamRest:             1.5,
		TVBroadcastMandatory: 1.8,
		TravelDistance:       1.3,
	},
	"basketball": {
		ConsecutiveAwayGames: 1.4,
	},
	"baseball": {
		WeatherWindow:   2.0,
		SeriesStructure: 1.5,
		TeamRest:        0.8,
	},
	"softball": {
		WeatherWindow:   2.0,
		SeriesStructure: 1.5,
		TeamRest:        0.8,
	},
	"volleyball": {
		WeekendDistribution: 1.2,
	},
	"soccer": {
		TravelDistance: 1.1,
	},
}

// SportMultiplier returns the weight multiplier for a kind in the given
// sport, defaulting to 1.0.
func SportMultiplier(sport string, kind Kind) float64 {
	if m, ok := sportMultipliers[sport]; ok {
		if factor, ok := m[kind]; ok {
			return factor
		}
	}
	return 1.0
}
