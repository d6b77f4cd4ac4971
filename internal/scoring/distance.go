package scoring

import (
	"math"

	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// EarthRadiusMiles fixes the project-wide distance unit: statute miles.
const EarthRadiusMiles = 3958.8

// DistanceProvider resolves the distance in miles between two locations.
// The default is great-circle haversine; callers may substitute road
// distances.
type DistanceProvider interface {
	Distance(a, b domain.Location) float64
}

// HaversineProvider computes great-circle distances on a spherical Earth.
type HaversineProvider struct{}

// Distance returns the haversine distance between two points in miles.
func (HaversineProvider) Distance(a, b domain.Location) float64 {
	return Haversine(a, b)
}

// Haversine is the single project-wide great-circle distance implementation.
func Haversine(a, b domain.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Clamp to guard against floating point drift just above 1.
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// DistanceTable precomputes pairwise distances between known locations at
// startup. It is read-only after construction and safe for concurrent use.
type DistanceTable struct {
	provider  DistanceProvider
	locations map[string]domain.Location
	miles     map[string]map[string]float64
}

// NewDistanceTable precomputes distances between every pair of named
// locations (team bases and venues).
func NewDistanceTable(provider DistanceProvider, locations map[string]domain.Location) *DistanceTable {
	if provider == nil {
		provider = HaversineProvider{}
	}
	t := &DistanceTable{
		provider:  provider,
		locations: locations,
		miles:     make(map[string]map[string]float64, len(locations)),
	}
	for fromID, from := range locations {
		row := make(map[string]float64, len(locations))
		for toID, to := range locations {
			row[toID] = provider.Distance(from, to)
		}
		t.miles[fromID] = row
	}
	return t
}

// Between returns the precomputed distance between two named locations,
// falling back to a direct computation for unknown IDs.
func (t *DistanceTable) Between(fromID, toID string) float64 {
	if row, ok := t.miles[fromID]; ok {
		if d, ok := row[toID]; ok {
			return d
		}
	}
	from, okFrom := t.locations[fromID]
	to, okTo := t.locations[toID]
	if !okFrom || !okTo {
		return 0
	}
	return t.provider.Distance(from, to)
}

// ScheduleLocations collects every named location a schedule can reference:
// team home bases and venue sites.
func ScheduleLocations(s *domain.Schedule) map[string]domain.Location {
	locations := make(map[string]domain.Location, len(s.Teams)+len(s.Venues))
	for id, team := range s.Teams {
		locations["team:"+id] = team.Location
	}
	for id, venue := range s.Venues {
		locations["venue:"+id] = venue.Location
	}
	return locations
}
