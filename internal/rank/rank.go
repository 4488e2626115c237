// Package rank orders catalog candidates by relevance to a query. Scoring is
// a pure function of the query, the candidates, and the compiled-in reference
// tables, so identical inputs always produce identical order.
//
// Pure string similarity over-favors obscure covers and tributes, so chart
// history and curated artist reputation act as priors that pull well-known
// recordings of a title ahead of soundalikes.
package rank

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/penlane/greenroom/internal/normalize"
	"github.com/penlane/greenroom/internal/provider"
	"github.com/penlane/greenroom/internal/refdata"
)

// MaxResults is how many scored candidates survive ranking.
const MaxResults = 10

// Scored is a candidate with its relevance score attached.
type Scored struct {
	provider.Track
	Score int
}

// Signal weights. The exact values are tuned, not derived; only their
// relative ordering matters: chart authority >= legendary stacking >
// exact title > popular artist > discovery order > commercial signals.
const (
	chartPeakBonus  = 1500 // chart position 1
	chartFloorBonus = 300  // chart position 100

	legendaryBonus = 1300
	popularBonus   = 800

	titleExactBonus     = 1200
	titleAllWordsBonus  = 900
	titleSubstringBonus = 700
	titlePrefixBonus    = 500
	titleWordRatioBonus = 400
	titlePartialBonus   = 250

	// goodTitleThreshold gates the second legendary bonus: a legendary act
	// with a solid title match must top the list.
	goodTitleThreshold = 600

	artistExactBonus   = 300
	artistPartialBonus = 150

	purchasableBonus = 25
	collectionBonus  = 10
	deepCutPenalty   = 15

	studioBonus   = 40
	originalBonus = 40
	durationBonus = 20
	eraBonus      = 30

	// artistMatchThreshold is the JaroWinkler similarity above which a
	// candidate artist is considered the same act as a chart entry's.
	artistMatchThreshold = 0.85
)

// discoveryTiers maps raw search-stream position to a popularity prior.
var discoveryTiers = []struct {
	below int
	bonus int
}{
	{5, 150},
	{15, 100},
	{30, 60},
	{50, 30},
}

var coverMarkers = []string{
	"tribute", "cover", "karaoke", "made famous", "in the style of",
	"originally performed",
}

var liveMarkers = []string{"live", "acoustic", "unplugged", "demo"}

var eraGenres = []string{"rock", "metal", "grunge", "hard rock", "alternative"}

// Rank scores candidates against the query and returns the survivors in
// descending score order. Ties break on discovery order; candidates scoring
// zero or below are dropped; at most MaxResults are kept.
func Rank(query string, candidates []provider.Track) []Scored {
	normQuery := normalize.Text(query)
	if normQuery == "" || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if s := score(normQuery, c); s > 0 {
			scored = append(scored, Scored{Track: c, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DiscoveryIndex < scored[j].DiscoveryIndex
	})

	if len(scored) > MaxResults {
		scored = scored[:MaxResults]
	}
	return scored
}

// score sums the independent signal contributions for one candidate.
// normQuery must already be normalized.
func score(normQuery string, c provider.Track) int {
	normTitle := normalize.Text(c.Title)

	total := 0

	titleScore := titleMatch(normQuery, normTitle)
	total += titleScore

	total += chartAuthority(normTitle, c.Artist)

	if refdata.IsLegendary(c.Artist) {
		total += legendaryBonus
		if titleScore >= goodTitleThreshold {
			total += legendaryBonus
		}
	} else if refdata.IsPopular(c.Artist) {
		total += popularBonus
	}

	total += discoveryBonus(c.DiscoveryIndex)

	if c.Price > 0 {
		total += purchasableBonus
	}
	if c.Collection != "" {
		total += collectionBonus
	}
	if c.TrackNumber > 12 {
		total -= deepCutPenalty
	}

	if titleScore == 0 {
		total += artistFallback(normQuery, normalize.Text(c.Artist))
	}

	if total > 0 {
		total += qualityTiebreakers(normTitle, c)
	}

	return total
}

// chartAuthority grants a bonus when the title charted and the candidate
// artist fuzzy-matches the charting act. Peak position 1 earns the most,
// position 100 the least, interpolated linearly.
func chartAuthority(normTitle, artist string) int {
	entries := refdata.ChartEntries(normTitle)
	if len(entries) == 0 {
		return 0
	}

	normArtist := normalize.Text(artist)
	best := 0
	for _, e := range entries {
		if !artistsMatch(normArtist, normalize.Text(e.Artist)) {
			continue
		}
		peak := e.Peak
		if peak < 1 {
			peak = 1
		}
		if peak > 100 {
			peak = 100
		}
		bonus := chartFloorBonus + (chartPeakBonus-chartFloorBonus)*(100-peak)/99
		if bonus > best {
			best = bonus
		}
	}
	return best
}

// ArtistsMatch reports whether two raw artist names identify the same act.
func ArtistsMatch(a, b string) bool {
	return artistsMatch(normalize.Text(a), normalize.Text(b))
}

// artistsMatch reports whether two normalized artist names identify the same
// act, by containment or JaroWinkler similarity.
func artistsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	return err == nil && sim >= artistMatchThreshold
}

// titleMatch returns the title-quality contribution. Tiers are mutually
// exclusive; the most specific applicable tier wins.
func titleMatch(normQuery, normTitle string) int {
	if normTitle == "" {
		return 0
	}

	if normTitle == normQuery {
		return titleExactBonus
	}

	queryWords := strings.Fields(normQuery)
	titleWords := strings.Fields(normTitle)
	titleWordSet := make(map[string]bool, len(titleWords))
	for _, w := range titleWords {
		titleWordSet[w] = true
	}

	exact := 0
	for _, w := range queryWords {
		if titleWordSet[w] {
			exact++
		}
	}
	if exact == len(queryWords) && exact > 0 {
		return titleAllWordsBonus
	}

	ratio := float64(len(normQuery)) / float64(len(normTitle))
	if ratio > 1 {
		ratio = 1
	}
	if strings.Contains(normTitle, normQuery) {
		return int(titleSubstringBonus * ratio)
	}
	if strings.HasPrefix(normTitle, normQuery) {
		return int(titlePrefixBonus * ratio)
	}

	if len(queryWords) > 0 && exact > 0 {
		return titleWordRatioBonus * exact / len(queryWords)
	}

	partial := 0
	for _, w := range queryWords {
		for _, tw := range titleWords {
			if strings.Contains(tw, w) || strings.Contains(w, tw) {
				partial++
				break
			}
		}
	}
	if len(queryWords) > 0 && partial > 0 {
		return titlePartialBonus * partial / len(queryWords)
	}

	return 0
}

// discoveryBonus rewards appearing early in the raw search stream.
func discoveryBonus(index int) int {
	for _, tier := range discoveryTiers {
		if index < tier.below {
			return tier.bonus
		}
	}
	return 0
}

// artistFallback applies only when no title signal fired: the query may be an
// artist search.
func artistFallback(normQuery, normArtist string) int {
	if normArtist == "" {
		return 0
	}
	if normArtist == normQuery {
		return artistExactBonus
	}
	if strings.Contains(normArtist, normQuery) || strings.Contains(normQuery, normArtist) {
		return artistPartialBonus
	}
	return 0
}

// qualityTiebreakers separates otherwise similar candidates: studio versions
// over live cuts, originals over tributes, full-length recordings, and a
// release-era adjustment.
func qualityTiebreakers(normTitle string, c provider.Track) int {
	total := 0

	if !containsAny(normTitle, liveMarkers) {
		total += studioBonus
	}

	haystack := normTitle + " " + normalize.Text(c.Artist) + " " + normalize.Text(c.Collection)
	if !containsAny(haystack, coverMarkers) {
		total += originalBonus
	}

	if c.DurationSeconds > 180 {
		total += durationBonus
	}

	switch {
	case c.ReleaseYear >= 1980 && c.ReleaseYear <= 2000 && isEraGenre(c.Genre):
		total += eraBonus
	case c.ReleaseYear > 2000:
		recency := (c.ReleaseYear - 2000) / 2
		if recency > 15 {
			recency = 15
		}
		total += recency
	}

	return total
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isEraGenre(genre string) bool {
	g := strings.ToLower(genre)
	for _, e := range eraGenres {
		if strings.Contains(g, e) {
			return true
		}
	}
	return false
}
