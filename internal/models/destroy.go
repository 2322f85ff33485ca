package models

import "sort"

// DestroyReport records what a destroy call did with each candidate instance
type DestroyReport struct {
	Destroyed []string
	Declined  []string
	Failed    map[string]error
}

// NewDestroyReport returns an empty report
func NewDestroyReport() *DestroyReport {
	return &DestroyReport{Failed: make(map[string]error)}
}

// FailedIDs returns the ids of instances whose termination failed, sorted
func (r *DestroyReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Candidates is the number of instances the destroy call considered
func (r *DestroyReport) Candidates() int {
	return len(r.Destroyed) + len(r.Declined) + len(r.Failed)
}
