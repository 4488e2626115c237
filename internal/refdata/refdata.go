// Package refdata holds the compiled-in reference tables the discovery engine
// ranks and enriches with: historical chart performance, curated artist sets,
// and static BPM/tuning fallbacks. The tables are versioned data assets;
// editing them must never require touching ranking logic.
package refdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/penlane/greenroom/internal/normalize"
)

// DatasetVersion identifies the revision of the embedded tables.
const DatasetVersion = "2025.08.1"

//go:embed data/*.json
var dataFS embed.FS

// ChartEntry records one artist's historical chart run for a title.
type ChartEntry struct {
	Artist string `json:"artist"`
	Peak   int    `json:"peak"`
	Year   int    `json:"year"`
}

var (
	charts        map[string][]ChartEntry
	legendary     []string
	legendaryKeys map[string]bool
	popular       []string
	popularKeys   map[string]bool
	bpmFallback   map[string]int
	tuningTable   map[string]string
)

func init() {
	mustLoad("data/charts.json", &charts)
	mustLoad("data/legendary_artists.json", &legendary)
	mustLoad("data/popular_artists.json", &popular)
	mustLoad("data/bpm_fallback.json", &bpmFallback)
	mustLoad("data/tuning_fallback.json", &tuningTable)

	legendaryKeys = keySet(legendary)
	popularKeys = keySet(popular)
}

func mustLoad(name string, dst any) {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("refdata: reading %s: %v", name, err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		panic(fmt.Sprintf("refdata: parsing %s: %v", name, err))
	}
}

func keySet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[normalize.Text(n)] = true
	}
	return set
}

// ChartEntries returns the chart history for a title, keyed by its normalized
// form. Nil when the title never charted.
func ChartEntries(title string) []ChartEntry {
	return charts[normalize.Text(title)]
}

// IsLegendary reports whether the artist is in the curated legendary-acts set.
// Matching is on normalized names, exact or artist-contains-member (covers
// "Dave Grohl & Foo Fighters"-style billing).
func IsLegendary(artist string) bool {
	return inSet(artist, legendaryKeys, legendary)
}

// IsPopular reports whether the artist is in the curated popular-artists set.
func IsPopular(artist string) bool {
	return inSet(artist, popularKeys, popular)
}

func inSet(artist string, keys map[string]bool, names []string) bool {
	key := normalize.Text(artist)
	if key == "" {
		return false
	}
	if keys[key] {
		return true
	}
	for _, n := range names {
		nk := normalize.Text(n)
		if nk != "" && len(key) > len(nk) && containsWord(key, nk) {
			return true
		}
	}
	return false
}

// containsWord reports whether needle appears in haystack on word boundaries.
func containsWord(haystack, needle string) bool {
	for from := 0; from < len(haystack); {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		leftOK := i == 0 || haystack[i-1] == ' '
		right := i + len(needle)
		rightOK := right == len(haystack) || haystack[right] == ' '
		if leftOK && rightOK {
			return true
		}
		from = i + 1
	}
	return false
}

// FallbackBPM returns the static tempo for a title, if the table has one.
func FallbackBPM(title string) (int, bool) {
	bpm, ok := bpmFallback[normalize.Text(title)]
	return bpm, ok
}

// FallbackTuning returns the static tuning for a title. The table lists only
// non-standard tunings; absence means standard.
func FallbackTuning(title string) (string, bool) {
	tuning, ok := tuningTable[normalize.Text(title)]
	return tuning, ok
}
