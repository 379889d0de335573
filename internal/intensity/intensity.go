// Package intensity presents and parses post-round effort scores.
package intensity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/vburojevic/rounds/internal/domain"
)

// Choice is one selectable answer.
type Choice struct {
	Key   string           `json:"key"`
	Label string           `json:"label"`
	Score domain.Intensity `json:"score"`
}

var categoricalAliases = map[string]int{
	"low": 1, "l": 1,
	"mid": 2, "medium": 2, "m": 2,
	"high": 3, "hi": 3, "h": 3,
}

// Choices returns the fixed answer set for scale.
func Choices(scale domain.Scale) []Choice {
	if scale == domain.ScaleCategorical {
		return []Choice{
			{Key: "l", Label: "low", Score: domain.Intensity{Scale: scale, Value: 1}},
			{Key: "m", Label: "mid", Score: domain.Intensity{Scale: scale, Value: 2}},
			{Key: "h", Label: "high", Score: domain.Intensity{Scale: scale, Value: 3}},
		}
	}
	return lo.Map(lo.Range(5), func(i, _ int) Choice {
		v := i + 1
		return Choice{Key: strconv.Itoa(v), Label: strconv.Itoa(v), Score: domain.Intensity{Scale: domain.ScaleNumeric, Value: v}}
	})
}

// Parse reads a user answer on scale. Numeric accepts 1..5; categorical accepts low/mid/high
// and their short forms, or 1..3.
func Parse(scale domain.Scale, input string) (domain.Intensity, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return domain.Intensity{}, fmt.Errorf("%w: empty answer", domain.ErrInvalidScore)
	}
	if scale == domain.ScaleCategorical {
		if v, ok := categoricalAliases[s]; ok {
			return domain.NewIntensity(scale, v)
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return domain.Intensity{}, fmt.Errorf("%w: %q is not one of %s", domain.ErrInvalidScore, input, Hint(scale))
	}
	return domain.NewIntensity(scale, v)
}

// Hint lists the accepted answers, e.g. "1-5" or "low/mid/high".
func Hint(scale domain.Scale) string {
	if scale == domain.ScaleCategorical {
		return "low/mid/high"
	}
	return "1-5"
}

// Prompt is the question shown while a round awaits its score.
func Prompt(round int, scale domain.Scale) string {
	return fmt.Sprintf("Round %d done. How hard was it? (%s)", round, Hint(scale))
}

// Summary aggregates the scores of one session.
type Summary struct {
	Rounds    int
	Average   float64 // raw scale values averaged
	PeakRound int     // 1-indexed, 0 when nothing was scored
	Peak      domain.Intensity
}

// Summarize computes averages over scores keyed by 0-based round index.
func Summarize(scores map[int]domain.Intensity) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	idx := lo.Keys(scores)
	sort.Ints(idx)

	total := lo.SumBy(idx, func(i int) int { return scores[i].Value })
	peak := lo.MaxBy(idx, func(a, b int) bool { return scores[a].Value > scores[b].Value })
	return Summary{
		Rounds:    len(idx),
		Average:   float64(total) / float64(len(idx)),
		PeakRound: peak + 1,
		Peak:      scores[peak],
	}
}

// Line renders scores as "R1 4 · R2 5" in round order.
func Line(scores map[int]domain.Intensity) string {
	idx := lo.Keys(scores)
	sort.Ints(idx)
	return strings.Join(lo.Map(idx, func(i, _ int) string {
		return fmt.Sprintf("R%d %s", i+1, scores[i])
	}), " · ")
}
