// Package progress derives simulation statistics and the cumulative user
// progress record from completed simulations.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/db"
)

const (
	recentWindow       = 5
	trendThreshold     = 5.0
	strongAccuracy     = 70.0
	weakAccuracy       = 60.0
	themeLimit         = 3
	maxRecommendations = 5
	maxTopErrors       = 5
)

// ComputeSimulationStats recomputes the aggregate block of a simulation from
// its question list. themeOf resolves a question id to its theme; questions
// it does not know only count toward the totals.
func ComputeSimulationStats(questions []db.SimulationQuestion, themeOf func(id string) (string, bool)) db.SimulationStats {
	stats := db.SimulationStats{
		TotalQuestions: len(questions),
		ByTheme:        map[string]db.ThemeScore{},
	}
	var timeSpent, timed int
	for _, q := range questions {
		theme, known := themeOf(q.QuestionID)
		if known {
			score := stats.ByTheme[theme]
			score.Total++
			stats.ByTheme[theme] = score
		}
		if !q.Answered() {
			continue
		}
		stats.Answered++
		if q.IsCorrect != nil && *q.IsCorrect {
			stats.Correct++
			if known {
				score := stats.ByTheme[theme]
				score.Correct++
				stats.ByTheme[theme] = score
			}
		} else {
			stats.Incorrect++
		}
		if q.TimeSpentSeconds != nil {
			timeSpent += *q.TimeSpentSeconds
			timed++
		}
	}
	if stats.Answered > 0 {
		stats.Accuracy = percent(stats.Correct, stats.Answered)
	}
	if timed > 0 {
		stats.AvgTimePerQuestion = float64(timeSpent) / float64(timed)
	}
	for theme, score := range stats.ByTheme {
		score.Accuracy = percent(score.Correct, score.Total)
		stats.ByTheme[theme] = score
	}
	return stats
}

// CalculateTrend compares the two halves of the last five attempts.
func CalculateTrend(attempts []float64) db.Trend {
	recent := lastN(attempts, recentWindow)
	if len(recent) < 3 {
		return db.TrendStable
	}
	half := len(recent) / 2
	first := lo.Sum(recent[:half]) / float64(half)
	second := lo.Sum(recent[half:]) / float64(len(recent)-half)
	switch {
	case second > first+trendThreshold:
		return db.TrendImproving
	case second < first-trendThreshold:
		return db.TrendDeclining
	default:
		return db.TrendStable
	}
}

// CalculateStreak extends the day streak when the previous activity was
// yesterday and keeps it for activity on the same day.
func CalculateStreak(previous int, lastActivity *time.Time, now time.Time) int {
	if lastActivity == nil {
		return 1
	}
	last := truncateDay(lastActivity.In(now.Location()))
	today := truncateDay(now)
	days := int(today.Sub(last).Round(24*time.Hour) / (24 * time.Hour))
	switch days {
	case 0:
		return max(previous, 1)
	case 1:
		return previous + 1
	default:
		return 1
	}
}

type themeAggregate struct {
	attempts []float64
	correct  int
	total    int
}

// Recalculate rebuilds the user progress record from completed simulations
// ordered oldest first. prev carries the streak state; questions resolves
// subthemes. The returned record keeps prev's identity.
func Recalculate(prev db.UserProgress, completed []db.Simulation, questions map[string]db.Question, now time.Time) db.UserProgress {
	completed = lo.Filter(completed, func(sim db.Simulation, _ int) bool { return sim.Completed() })
	themes := make(map[string]*themeAggregate)
	subthemes := make(map[string]map[string]db.SubthemeStats)
	var answered, correct int
	var overall []float64

	for _, sim := range completed {
		answered += sim.Stats.Answered
		correct += sim.Stats.Correct
		overall = append(overall, sim.Stats.Accuracy)

		for _, theme := range sortedKeys(sim.Stats.ByTheme) {
			score := sim.Stats.ByTheme[theme]
			agg, ok := themes[theme]
			if !ok {
				agg = &themeAggregate{}
				themes[theme] = agg
			}
			agg.correct += score.Correct
			agg.total += score.Total
			agg.attempts = append(agg.attempts, score.Accuracy)
		}

		for _, sq := range sim.Questions {
			if !sq.Answered() {
				continue
			}
			q, ok := questions[sq.QuestionID]
			if !ok || q.Subtheme == "" {
				continue
			}
			if subthemes[q.Theme] == nil {
				subthemes[q.Theme] = map[string]db.SubthemeStats{}
			}
			st := subthemes[q.Theme][q.Subtheme]
			st.Total++
			if sq.IsCorrect != nil && *sq.IsCorrect {
				st.Correct++
			} else {
				st.Errors++
			}
			subthemes[q.Theme][q.Subtheme] = st
		}
	}

	next := prev
	next.ID = db.UserProgressID
	next.LastUpdated = now
	if len(completed) == 0 {
		return next
	}

	rollup := make(db.ThemeRollup, len(themes))
	type ranked struct {
		theme    string
		accuracy float64
	}
	ranking := make([]ranked, 0, len(themes))
	for theme, agg := range themes {
		accuracy := percent(agg.correct, agg.total)
		recent := lastN(agg.attempts, recentWindow)
		var recentAccuracy float64
		if len(recent) > 0 {
			recentAccuracy = lo.Sum(recent) / float64(len(recent))
		}
		rollup[theme] = db.ThemeProgress{
			TotalAttempts:  agg.total,
			CorrectAnswers: agg.correct,
			Accuracy:       accuracy,
			Trend:          CalculateTrend(agg.attempts),
			RecentAccuracy: recentAccuracy,
			Subthemes:      subthemes[theme],
		}
		ranking = append(ranking, ranked{theme: theme, accuracy: accuracy})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].accuracy != ranking[j].accuracy {
			return ranking[i].accuracy > ranking[j].accuracy
		}
		return ranking[i].theme < ranking[j].theme
	})
	strong := lo.Map(lo.Filter(ranking, func(r ranked, _ int) bool { return r.accuracy >= strongAccuracy }),
		func(r ranked, _ int) string { return r.theme })
	weak := lo.Map(lo.Filter(ranking, func(r ranked, _ int) bool { return r.accuracy < weakAccuracy }),
		func(r ranked, _ int) string { return r.theme })

	next.TotalSimulations = len(completed)
	next.TotalQuestionsAnswered = answered
	next.OverallAccuracy = 0
	if answered > 0 {
		next.OverallAccuracy = percent(correct, answered)
	}
	next.ByTheme = rollup
	next.Trends = db.TrendAnalysis{
		OverallTrend: CalculateTrend(overall),
		StrongThemes: lo.Subset(strong, 0, themeLimit),
		WeakThemes:   lo.Subset(weak, 0, themeLimit),
	}
	next.Trends.Recommendations = lo.Map(Recommendations(next), func(r Recommendation, _ int) string { return r.Message })
	next.Streak = CalculateStreak(prev.Streak, prev.LastActivityDate, now)
	next.LastActivityDate = &now
	return next
}

type RecommendationKind string

const (
	KindPriority  RecommendationKind = "priority"
	KindCelebrate RecommendationKind = "celebrate"
	KindMaintain  RecommendationKind = "maintain"
	KindReview    RecommendationKind = "review"
)

type Recommendation struct {
	Kind            RecommendationKind
	Theme           string
	Message         string
	SuggestedAction string
}

// Recommendations lists study suggestions: weak themes first, then the best
// strong theme, then themes trending up or down. At most five are returned.
func Recommendations(p db.UserProgress) []Recommendation {
	var recs []Recommendation
	for _, theme := range p.Trends.WeakThemes {
		recs = append(recs, Recommendation{
			Kind:            KindPriority,
			Theme:           theme,
			Message:         fmt.Sprintf("%s is below target (%.0f%%)", theme, p.ByTheme[theme].Accuracy),
			SuggestedAction: fmt.Sprintf("Take a focused simulation on %s and review its key concepts", theme),
		})
	}
	for _, theme := range lo.Subset(p.Trends.StrongThemes, 0, 1) {
		recs = append(recs, Recommendation{
			Kind:            KindCelebrate,
			Theme:           theme,
			Message:         fmt.Sprintf("You are mastering %s (%.0f%%)", theme, p.ByTheme[theme].Accuracy),
			SuggestedAction: "Keep reviewing it periodically",
		})
	}
	for _, theme := range sortedKeys(p.ByTheme) {
		data := p.ByTheme[theme]
		if data.Trend == db.TrendImproving && !lo.Contains(p.Trends.StrongThemes, theme) {
			recs = append(recs, Recommendation{
				Kind:            KindMaintain,
				Theme:           theme,
				Message:         fmt.Sprintf("You are improving in %s", theme),
				SuggestedAction: "Keep practicing to consolidate it",
			})
		}
		if data.Trend == db.TrendDeclining {
			recs = append(recs, Recommendation{
				Kind:            KindReview,
				Theme:           theme,
				Message:         fmt.Sprintf("Your results in %s are dropping", theme),
				SuggestedAction: "Review the fundamentals of this area",
			})
		}
	}
	return lo.Subset(recs, 0, maxRecommendations)
}

type ThemeErrors struct {
	Theme  string
	Errors int
	Total  int
}

// TopErrorThemes ranks themes by wrong answers across completed simulations.
func TopErrorThemes(completed []db.Simulation) []ThemeErrors {
	byTheme := make(map[string]*ThemeErrors)
	for _, sim := range completed {
		if !sim.Completed() {
			continue
		}
		for theme, score := range sim.Stats.ByTheme {
			e, ok := byTheme[theme]
			if !ok {
				e = &ThemeErrors{Theme: theme}
				byTheme[theme] = e
			}
			e.Total += score.Total
			e.Errors += score.Total - score.Correct
		}
	}
	ranked := lo.FilterMap(lo.Values(byTheme), func(e *ThemeErrors, _ int) (ThemeErrors, bool) {
		return *e, e.Errors > 0
	})
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Errors != ranked[j].Errors {
			return ranked[i].Errors > ranked[j].Errors
		}
		return ranked[i].Theme < ranked[j].Theme
	})
	return lo.Subset(ranked, 0, maxTopErrors)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
