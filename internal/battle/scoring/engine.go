package scoring

import "time"

// ScoringConfig holds configurable scoring constants (defaults match requirements).
type ScoringConfig struct {
	MaxScore  int           // default: 100
	MinScore  int           // default: 50
	TimeLimit time.Duration // default: 10s
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxScore:  100,
		MinScore:  50,
		TimeLimit: 10 * time.Second,
	}
}

// Engine computes server-side scores with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine; zero fields fall back to the defaults.
func NewEngine(config ScoringConfig) *Engine {
	defaults := DefaultScoringConfig()
	if config.MaxScore == 0 && config.MinScore == 0 {
		config.MaxScore = defaults.MaxScore
		config.MinScore = defaults.MinScore
	}
	if config.TimeLimit <= 0 {
		config.TimeLimit = defaults.TimeLimit
	}
	return &Engine{config: config}
}

// TimeLimit is the answer window the score decays over.
func (e *Engine) TimeLimit() time.Duration {
	return e.config.TimeLimit
}

// ScoreForLatency awards points for a correct answer given after elapsedMs.
// The score decays linearly from max at 0ms to min at the time limit and is
// clamped to [min, max]. Negative latencies count as the full limit.
func (e *Engine) ScoreForLatency(elapsedMs int64) int {
	limitMs := e.config.TimeLimit.Milliseconds()
	if elapsedMs < 0 {
		elapsedMs = limitMs
	}
	if elapsedMs >= limitMs {
		return e.config.MinScore
	}

	spread := int64(e.config.MaxScore - e.config.MinScore)
	score := int64(e.config.MaxScore) - (elapsedMs*spread)/limitMs
	if score < int64(e.config.MinScore) {
		return e.config.MinScore
	}
	if score > int64(e.config.MaxScore) {
		return e.config.MaxScore
	}
	return int(score)
}

// CalculateScore returns the points for one answer: zero when wrong.
func (e *Engine) CalculateScore(isCorrect bool, elapsedMs int64) int {
	if !isCorrect {
		return 0
	}
	return e.ScoreForLatency(elapsedMs)
}
