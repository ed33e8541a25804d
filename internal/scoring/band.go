package scoring

import "ielts-practice-service/internal/domain"

// bandSteps maps a minimum raw correct count on the standard 40-question
// reading/listening test to its band. Ordered highest first.
var bandSteps = []struct {
	minCorrect int
	band       float64
}{
	{39, 9.0},
	{37, 8.5},
	{35, 8.0},
	{33, 7.5},
	{30, 7.0},
	{27, 6.5},
	{23, 6.0},
	{19, 5.5},
	{15, 5.0},
	{13, 4.5},
	{10, 4.0},
	{8, 3.5},
	{6, 3.0},
	{4, 2.5},
}

// ToBand converts a raw correct-answer count to the 0-9 band score. It is
// total over non-negative inputs; counts below the lowest step map to 0.
func ToBand(correct int) float64 {
	for _, step := range bandSteps {
		if correct >= step.minCorrect {
			return step.band
		}
	}
	return 0.0
}

// BandForAttempt returns the band for a completed reading or listening attempt
// and nil otherwise: other skills and unfinished attempts do not report one.
func BandForAttempt(status, skill string, score *int) *float64 {
	if status != domain.StatusCompleted || score == nil {
		return nil
	}
	if skill != domain.SkillReading && skill != domain.SkillListening {
		return nil
	}
	band := ToBand(*score)
	return &band
}
