package scoring

import (
	"testing"

	"ielts-practice-service/internal/domain"
)

func TestToBandTable(t *testing.T) {
	cases := []struct {
		correct int
		want    float64
	}{
		{0, 0.0},
		{3, 0.0},
		{4, 2.5},
		{6, 3.0},
		{8, 3.5},
		{10, 4.0},
		{13, 4.5},
		{15, 5.0},
		{19, 5.5},
		{23, 6.0},
		{27, 6.5},
		{30, 7.0},
		{33, 7.5},
		{35, 8.0},
		{37, 8.5},
		{39, 9.0},
		{40, 9.0},
	}
	for _, tc := range cases {
		if got := ToBand(tc.correct); got != tc.want {
			t.Fatalf("ToBand(%d) = %v, want %v", tc.correct, got, tc.want)
		}
	}
}

func TestToBandMonotonic(t *testing.T) {
	prev := ToBand(0)
	for c := 1; c <= 45; c++ {
		band := ToBand(c)
		if band < prev {
			t.Fatalf("band decreased at %d correct: %v < %v", c, band, prev)
		}
		prev = band
	}
}

func TestBandForAttempt(t *testing.T) {
	score := 30
	if band := BandForAttempt(domain.StatusCompleted, domain.SkillReading, &score); band == nil || *band != 7.0 {
		t.Fatalf("expected band 7.0 for completed reading with 30 correct, got %v", band)
	}
	if band := BandForAttempt(domain.StatusCompleted, domain.SkillWriting, &score); band != nil {
		t.Fatalf("expected no band for writing, got %v", *band)
	}
	if band := BandForAttempt(domain.StatusInProgress, domain.SkillListening, &score); band != nil {
		t.Fatalf("expected no band for in-progress attempt, got %v", *band)
	}
	if band := BandForAttempt(domain.StatusCompleted, domain.SkillListening, nil); band != nil {
		t.Fatalf("expected no band without a score, got %v", *band)
	}
}
