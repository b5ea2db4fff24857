package domain

const (
	// BIT score bounds
	ScoreMin = 0.0
	ScoreMax = 100.0

	// MaxDecayDays caps the recency decay subtracted from a raw score
	MaxDecayDays = 30

	// Score band boundaries
	HotScoreThreshold  = 75.0
	WarmScoreThreshold = 50.0
)
