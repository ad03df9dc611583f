package combine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// #region case

// Case is one golden-dataset entry: a prompt, what a good answer looks
// like, and how much a miss should hurt.
type Case struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Input          string `json:"input"`
	Expected       string `json:"expected_output"`
	RiskLevel      string `json:"risk_level"`
	Language       string `json:"language"`
	ActiveTeamID   string `json:"active_team_id"`
	ActiveLeagueID string `json:"active_league_id"`
	TeamName       string `json:"team_name"`
	Criteria       string `json:"passing_criteria"`
}

// LoadDataset reads and parses a JSON dataset file.
func LoadDataset(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return cases, nil
}

// #endregion case

// #region results

// CaseResult is the outcome of running one case against the API.
type CaseResult struct {
	ID           string
	Category     string
	RiskLevel    string
	Passed       bool
	Reason       string
	Output       string
	ContextItems int
	Criteria     string
	Err          string // non-empty when the API call itself failed
}

// CategoryStats counts outcomes within one category.
type CategoryStats struct {
	Passed int
	Failed int
}

// Report aggregates a full run.
type Report struct {
	Results          []CaseResult
	Total            int
	Passed           int
	Failed           int
	WeightedPassRate float64
	ByCategory       map[string]CategoryStats
	CriticalFailures []string // IDs of failed critical-risk cases
}

// Summarize computes aggregate stats from per-case results. Weights:
// critical counts 3x, high 2x, everything else 1x.
func Summarize(results []CaseResult) Report {
	r := Report{
		Results:    results,
		Total:      len(results),
		ByCategory: make(map[string]CategoryStats),
	}
	var weightedTotal, weightedPassed int
	for _, res := range results {
		stats := r.ByCategory[res.Category]
		weight := riskWeight(res.RiskLevel)
		weightedTotal += weight
		if res.Passed {
			r.Passed++
			stats.Passed++
			weightedPassed += weight
		} else {
			r.Failed++
			stats.Failed++
			if normalizeRisk(res.RiskLevel) == "critical" {
				r.CriticalFailures = append(r.CriticalFailures, res.ID)
			}
		}
		r.ByCategory[res.Category] = stats
	}
	if weightedTotal > 0 {
		r.WeightedPassRate = float64(weightedPassed) / float64(weightedTotal)
	}
	return r
}

func riskWeight(level string) int {
	switch normalizeRisk(level) {
	case "critical":
		return 3
	case "high":
		return 2
	}
	return 1
}

func normalizeRisk(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}

// #endregion results
