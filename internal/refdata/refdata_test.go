package refdata

import "testing"

func TestChartEntries(t *testing.T) {
	entries := ChartEntries("Hotel California")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Artist != "Eagles" || entries[0].Peak != 1 {
		t.Errorf("unexpected entry %+v", entries[0])
	}

	// Lookup is punctuation/case-insensitive.
	if ChartEntries("HOTEL CALIFORNIA!") == nil {
		t.Error("expected normalized lookup to hit")
	}

	if ChartEntries("completely unknown song") != nil {
		t.Error("expected nil for uncharted title")
	}
}

func TestChartEntriesMultipleArtists(t *testing.T) {
	entries := ChartEntries("blackout")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestArtistSets(t *testing.T) {
	if !IsLegendary("Queen") || !IsLegendary("queen") {
		t.Error("Queen should be legendary")
	}
	if IsLegendary("Foo Fighters") {
		t.Error("Foo Fighters is popular, not legendary")
	}
	if !IsPopular("Foo Fighters") {
		t.Error("Foo Fighters should be popular")
	}
	// Containment billing.
	if !IsPopular("Dave Grohl & Foo Fighters") {
		t.Error("containment match should hit")
	}
	if IsPopular("") {
		t.Error("empty artist must not match")
	}
}

func TestFallbackBPM(t *testing.T) {
	bpm, ok := FallbackBPM("Bohemian Rhapsody")
	if !ok || bpm != 72 {
		t.Errorf("expected (72, true), got (%d, %v)", bpm, ok)
	}
	if _, ok := FallbackBPM("nonexistent"); ok {
		t.Error("expected miss for unknown title")
	}
}

func TestFallbackTuning(t *testing.T) {
	tuning, ok := FallbackTuning("Everlong")
	if !ok || tuning != "drop_d" {
		t.Errorf("expected (drop_d, true), got (%q, %v)", tuning, ok)
	}
	// The table lists only non-standard tunings.
	if _, ok := FallbackTuning("Hotel California"); ok {
		t.Error("expected miss for standard-tuning title")
	}
}
