// Package grading computes weighted final grades and cohort band counts.
package grading

import (
	"github.com/ST10104037/hippocampus-site/internal/model"
)

// Tracked assessments in lecturer analytics
const (
	AssessmentAssignment1 = "assignment1"
	AssessmentExam        = "exam"
)

// Row is one assessment of a grade table
type Row struct {
	Assessment string
	Grade      float64
	Weight     float64
}

// Contribution is the weighted grade of the row
func (r Row) Contribution() float64 {
	return r.Grade * r.Weight
}

type Result struct {
	Rows        []Row
	FinalGrade  float64
	TotalWeight float64
}

// HasScheme is false when no marking scheme is configured. A zero FinalGrade
// then means "no data", not "nothing earned".
func (r Result) HasScheme() bool {
	return len(r.Rows) > 0
}

// Aggregate builds the grade table of a student. Rows follow the scheme's
// order; a mark missing from marks counts as 0. The weighted sum is reported
// as is, without normalising by TotalWeight.
func Aggregate(scheme, marks model.Weights) Result {
	res := Result{Rows: make([]Row, 0, len(scheme))}

	for _, w := range scheme {
		row := Row{
			Assessment: w.Name,
			Grade:      marks.Value(w.Name),
			Weight:     w.Value,
		}
		res.Rows = append(res.Rows, row)
		res.FinalGrade += row.Contribution()
		res.TotalWeight += row.Weight
	}

	return res
}
