package grading

import "github.com/ST10104037/hippocampus-site/internal/model"

type Band string

const (
	BandDistinction Band = "Distinction"
	BandPass        Band = "Pass"
	BandFail        Band = "Fail"
	BandNoMark      Band = "No Mark"
)

// AllBands in chart order
var AllBands = []Band{BandDistinction, BandPass, BandFail, BandNoMark}

// Categorize places a mark in its band. Zero, negative and NaN are No Mark.
func Categorize(mark float64) Band {
	switch {
	case mark >= 75:
		return BandDistinction
	case mark >= 50:
		return BandPass
	case mark > 0:
		return BandFail
	default:
		return BandNoMark
	}
}

// Bands counts students per band. Every band is present, possibly with 0.
type Bands map[Band]int

func NewBands() Bands {
	b := make(Bands, len(AllBands))
	for _, band := range AllBands {
		b[band] = 0
	}
	return b
}

type BandCount struct {
	Band  Band
	Count int
}

// Ordered returns the counts in chart order
func (b Bands) Ordered() []BandCount {
	out := make([]BandCount, 0, len(AllBands))
	for _, band := range AllBands {
		out = append(out, BandCount{Band: band, Count: b[band]})
	}
	return out
}

// Total is the number of counted students
func (b Bands) Total() int {
	n := 0
	for _, c := range b {
		n += c
	}
	return n
}

// Distribution counts the students' marks for one assessment. A student
// without a mark for it is No Mark.
func Distribution(students []*model.UserProfile, assessment string) Bands {
	bands := NewBands()
	for _, s := range students {
		bands[Categorize(s.Marks.Value(assessment))]++
	}
	return bands
}
