package formatting

import (
	"fmt"
	"strings"

	"github.com/ST10104037/hippocampus-site/internal/grading"
)

// FormatGradeTable renders the rows of a grade table and the final grade.
// Without a marking scheme only a notice is shown, never a grade of 0.
func FormatGradeTable(res grading.Result) string {
	if !res.HasScheme() {
		return "📋 No marking scheme configured yet."
	}

	var sb strings.Builder
	sb.WriteString("<b>Assessment | Grade | Weight</b>\n")
	for _, row := range res.Rows {
		fmt.Fprintf(&sb, "%s | %s | %s\n",
			escape(row.Assessment),
			FormatGrade(row.Grade),
			FormatWeight(row.Weight))
	}
	fmt.Fprintf(&sb, "\n🎯 <b>Final grade: %s</b>", FormatGrade(res.FinalGrade))
	return sb.String()
}

// FormatGrade renders a grade with one decimal
func FormatGrade(grade float64) string {
	return fmt.Sprintf("%.1f", grade)
}

// FormatWeight renders a weight as a percentage
func FormatWeight(weight float64) string {
	return fmt.Sprintf("%.4g%%", weight*100)
}

// FormatBands renders one band count per line in chart order
func FormatBands(title string, bands grading.Bands) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s</b> (%s)\n", escape(title), CountStudents(bands.Total()))
	for _, bc := range bands.Ordered() {
		fmt.Fprintf(&sb, "%s %s: %d\n", bandEmoji(bc.Band), bc.Band, bc.Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func bandEmoji(b grading.Band) string {
	switch b {
	case grading.BandDistinction:
		return "🏆"
	case grading.BandPass:
		return "🟢"
	case grading.BandFail:
		return "🔴"
	default:
		return "⚪️"
	}
}
