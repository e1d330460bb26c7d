package filter

import (
	"strings"

	"nostr-jobs/pkg/record"
	"nostr-jobs/pkg/utils"
)

// Criteria narrows a record set. Empty fields match everything.
type Criteria struct {
	Company        string
	Skill          string
	EmploymentType string
}

func (c Criteria) IsEmpty() bool {
	return c.Company == "" && c.Skill == "" && c.EmploymentType == ""
}

// Filter keeps records that satisfy every supplied criterion. A criterion
// matches when any value of its kind contains it, ignoring case. Input order
// is preserved.
func Filter(records []record.Record, c Criteria) []record.Record {
	checks := []struct {
		kind  record.Kind
		value string
	}{
		{record.KindCompany, strings.ToLower(c.Company)},
		{record.KindSkill, strings.ToLower(c.Skill)},
		{record.KindEmploymentType, strings.ToLower(c.EmploymentType)},
	}

	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		ok := true
		for _, chk := range checks {
			if chk.value != "" && !anyContains(r.View().Values(chk.kind), chk.value) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func anyContains(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// Aggregation holds per-value counts across a record set.
type Aggregation struct {
	Total           int
	Companies       map[string]int
	Skills          map[string]int
	EmploymentTypes map[string]int
}

// Aggregate counts every company, skill and employment-type value in the
// set. Repeated values on one record count once per occurrence.
func Aggregate(records []record.Record) Aggregation {
	agg := Aggregation{
		Total:           len(records),
		Companies:       make(map[string]int),
		Skills:          make(map[string]int),
		EmploymentTypes: make(map[string]int),
	}
	for _, r := range records {
		v := r.View()
		for _, s := range v.Values(record.KindCompany) {
			agg.Companies[s]++
		}
		for _, s := range v.Values(record.KindSkill) {
			agg.Skills[s]++
		}
		for _, s := range v.Values(record.KindEmploymentType) {
			agg.EmploymentTypes[s]++
		}
	}
	return agg
}

// TopN returns at most n entries ordered by descending count.
func TopN(counts map[string]int, n int) []utils.ValueCount {
	sorted := utils.SortByCount(counts)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
