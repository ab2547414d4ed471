package merge

import (
	"time"

	"github.com/postfiat/pftscan/pkg/scan"
)

const dayFormat = "2006-01-02"

// dayRange yields every calendar day from first to last inclusive. Inputs
// that fail to parse yield nil.
func dayRange(first, last string) []string {
	start, err := time.Parse(dayFormat, first)
	if err != nil {
		return nil
	}
	end, err := time.Parse(dayFormat, last)
	if err != nil {
		return nil
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayFormat))
	}
	return days
}

// fillActivityGaps inserts zero-valued entries for any missing day so
// downstream consumers always see a gapless timeline. Entries whose date does
// not parse (the classifier buckets missing close times as "unknown") are
// carried through after the dated range.
func fillActivityGaps(sorted []scan.DailyActivity) []scan.DailyActivity {
	var dated, undated []scan.DailyActivity
	byDate := map[string]scan.DailyActivity{}
	for _, d := range sorted {
		if _, err := time.Parse(dayFormat, d.Date); err != nil {
			undated = append(undated, d)
			continue
		}
		dated = append(dated, d)
		byDate[d.Date] = d
	}
	if len(dated) == 0 {
		return sorted
	}

	out := make([]scan.DailyActivity, 0, len(dated))
	for _, day := range dayRange(dated[0].Date, dated[len(dated)-1].Date) {
		if d, ok := byDate[day]; ok {
			out = append(out, d)
		} else {
			out = append(out, scan.DailyActivity{Date: day})
		}
	}
	return append(out, undated...)
}

func fillSubmissionGaps(sorted []scan.DailySubmissions) []scan.DailySubmissions {
	var dated, undated []scan.DailySubmissions
	byDate := map[string]scan.DailySubmissions{}
	for _, d := range sorted {
		if _, err := time.Parse(dayFormat, d.Date); err != nil {
			undated = append(undated, d)
			continue
		}
		dated = append(dated, d)
		byDate[d.Date] = d
	}
	if len(dated) == 0 {
		return sorted
	}

	out := make([]scan.DailySubmissions, 0, len(dated))
	for _, day := range dayRange(dated[0].Date, dated[len(dated)-1].Date) {
		if d, ok := byDate[day]; ok {
			out = append(out, d)
		} else {
			out = append(out, scan.DailySubmissions{Date: day})
		}
	}
	return append(out, undated...)
}
