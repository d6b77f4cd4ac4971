package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// Fingerprint produces a content hash for a (constraint set, schedule) pair
// used as the evaluation cache key. Constraints are reduced to stable-sorted
// (kind, weight, params) tuples and games to canonical
// (sport, home, away, date day bucket, venue) tuples, so logically identical
// inputs hash identically regardless of ordering.
func Fingerprint(constraints []constraint.Constraint, s *domain.Schedule) string {
	h := sha256.New()

	lines := make([]string, 0, len(constraints))
	for i := range constraints {
		c := &constraints[i]
		lines = append(lines, fmt.Sprintf("c|%s|%.6f|%s", c.Kind, c.Weight, canonicalParams(c.Params)))
	}
	sort.Strings(lines)
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}

	games := make([]string, 0, len(s.Games))
	for i := range s.Games {
		g := &s.Games[i]
		games = append(games, fmt.Sprintf("g|%s|%s|%s|%s|%s",
			g.Sport, g.HomeID, g.AwayID, g.Date.UTC().Format("2006-01-02"), g.VenueID))
	}
	sort.Strings(games)
	for _, line := range games {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalParams renders a params map with sorted keys so the hash does not
// depend on map iteration order.
func canonicalParams(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	return b.String()
}
