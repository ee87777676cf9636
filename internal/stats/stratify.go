package stats

import (
	"sort"
)

// Stratum labels. Dimension-value strata use "dimension:value".
const (
	StratumOverall    = "overall"
	genreUnspecified  = "unspecified"
	dimensionTaskType = "task_type"
	dimensionGenre    = "genre"
)

// StratumResult is one stratum's summary within a stratified report.
type StratumResult struct {
	Stratum string `json:"stratum"`
	Summary
}

// Stratify computes the pair summary overall and per stratum: one row per
// task type and one per genre. A task carrying several genres counts once
// in each; a task with none falls into "genre:unspecified". Rows are
// ordered overall first, then task types, then genres, alphabetically
// within each dimension. order pins the A/B naming as in Compute; empty
// input produces the single zero-filled overall row.
func Stratify(js []Judgment, mode VoteMode, order []string) ([]StratumResult, error) {
	systemA, systemB, err := pairSystems(js, order)
	if err != nil {
		return nil, err
	}
	groups, err := groupTasks(js, systemA, systemB, mode)
	if err != nil {
		return nil, err
	}

	results := []StratumResult{{
		Stratum: StratumOverall,
		Summary: summarize(systemA, systemB, groups),
	}}

	byType := map[string][]taskGroup{}
	byGenre := map[string][]taskGroup{}
	for _, g := range groups {
		byType[g.taskType] = append(byType[g.taskType], g)
		if len(g.genres) == 0 {
			byGenre[genreUnspecified] = append(byGenre[genreUnspecified], g)
			continue
		}
		counted := map[string]bool{}
		for _, genre := range g.genres {
			if counted[genre] {
				continue
			}
			counted[genre] = true
			byGenre[genre] = append(byGenre[genre], g)
		}
	}

	for _, dim := range []struct {
		name    string
		buckets map[string][]taskGroup
	}{
		{dimensionTaskType, byType},
		{dimensionGenre, byGenre},
	} {
		values := make([]string, 0, len(dim.buckets))
		for v := range dim.buckets {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			results = append(results, StratumResult{
				Stratum: dim.name + ":" + v,
				Summary: summarize(systemA, systemB, dim.buckets[v]),
			})
		}
	}

	return results, nil
}
