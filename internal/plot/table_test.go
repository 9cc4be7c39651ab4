package plot

import (
	"strings"
	"testing"
)

func TestScoreTableAlignsColumns(t *testing.T) {
	lines := ScoreTable([]string{"Q1", "Quiz 2"}, []float64{70, 85.5}, []float64{75, 75})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Item") || !strings.Contains(lines[0], "Class Avg") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[2], "85.5") {
		t.Fatalf("expected fractional score rendered: %q", lines[2])
	}
}

func TestScoreTableTruncatesToShorter(t *testing.T) {
	lines := ScoreTable([]string{"Q1", "Q2", "Q3"}, []float64{70}, nil)
	// Header plus a single aligned row.
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
}

func TestScoreTableEmpty(t *testing.T) {
	if lines := ScoreTable(nil, nil, nil); lines != nil {
		t.Fatalf("expected nil for empty input, got %v", lines)
	}
}

func TestBarsScaleToMax(t *testing.T) {
	lines := Bars([]string{"Ann", "Bob"}, []float64{50, 100}, 40)
	if len(lines) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(lines))
	}
	annBar := strings.Count(lines[0], barGlyph)
	bobBar := strings.Count(lines[1], barGlyph)
	if bobBar <= annBar {
		t.Fatalf("expected longer bar for higher value: ann=%d bob=%d", annBar, bobBar)
	}
	if annBar == 0 {
		t.Fatalf("nonzero value should render at least one cell")
	}
}

func TestBarsZeroValues(t *testing.T) {
	lines := Bars([]string{"Ann"}, []float64{0}, 40)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if strings.Contains(lines[0], barGlyph) {
		t.Fatalf("zero value should render no bar: %q", lines[0])
	}
}
