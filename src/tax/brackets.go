// Package tax provides the federal tax bracket tables and rate lookups used
// to estimate the value of harvested losses. Supports tax years 2025 and 2026.
//
// Bracket source: IRS Revenue Procedures (inflation-adjusted annually).
package tax

import "github.com/username/optionstaxhub/backend/src/models"

// bracket is an internal table entry; upTo < 0 means unbounded.
type bracket struct {
	upTo float64
	rate float64
}

const unbounded = -1.0

// NIITRate is the Net Investment Income Tax surcharge for high earners.
const NIITRate = 0.038

// Annual capital loss deduction limits against ordinary income.
const (
	CapitalLossDeductionLimit    = 3000.0
	CapitalLossDeductionLimitMFS = 1500.0 // married filing separately
)

var ltcgBrackets = map[int]map[models.FilingStatus][]bracket{
	2025: {
		models.FilingSingle:                  {{48_350, 0.00}, {533_400, 0.15}, {unbounded, 0.20}},
		models.FilingMarriedFilingJointly:    {{96_700, 0.00}, {600_050, 0.15}, {unbounded, 0.20}},
		models.FilingMarriedFilingSeparately: {{48_350, 0.00}, {300_000, 0.15}, {unbounded, 0.20}},
		models.FilingHeadOfHousehold:         {{64_750, 0.00}, {566_700, 0.15}, {unbounded, 0.20}},
	},
	2026: {
		models.FilingSingle:                  {{49_450, 0.00}, {545_500, 0.15}, {unbounded, 0.20}},
		models.FilingMarriedFilingJointly:    {{98_900, 0.00}, {613_700, 0.15}, {unbounded, 0.20}},
		models.FilingMarriedFilingSeparately: {{49_450, 0.00}, {306_850, 0.15}, {unbounded, 0.20}},
		models.FilingHeadOfHousehold:         {{66_200, 0.00}, {579_600, 0.15}, {unbounded, 0.20}},
	},
}

// Short-term gains are taxed as ordinary income.
var ordinaryBrackets = map[int]map[models.FilingStatus][]bracket{
	2025: {
		models.FilingSingle: {
			{11_925, 0.10}, {48_475, 0.12}, {103_350, 0.22}, {197_300, 0.24},
			{250_525, 0.32}, {626_350, 0.35}, {unbounded, 0.37},
		},
		models.FilingMarriedFilingJointly: {
			{23_850, 0.10}, {96_950, 0.12}, {206_700, 0.22}, {394_600, 0.24},
			{501_050, 0.32}, {751_600, 0.35}, {unbounded, 0.37},
		},
		models.FilingMarriedFilingSeparately: {
			{11_925, 0.10}, {48_475, 0.12}, {103_350, 0.22}, {197_300, 0.24},
			{250_525, 0.32}, {375_800, 0.35}, {unbounded, 0.37},
		},
		models.FilingHeadOfHousehold: {
			{17_000, 0.10}, {64_850, 0.12}, {103_350, 0.22}, {197_300, 0.24},
			{250_500, 0.32}, {626_350, 0.35}, {unbounded, 0.37},
		},
	},
	2026: {
		models.FilingSingle: {
			{12_150, 0.10}, {49_475, 0.12}, {105_525, 0.22}, {201_450, 0.24},
			{255_800, 0.32}, {639_750, 0.35}, {unbounded, 0.37},
		},
		models.FilingMarriedFilingJointly: {
			{24_300, 0.10}, {98_950, 0.12}, {211_050, 0.22}, {402_900, 0.24},
			{511_550, 0.32}, {767_550, 0.35}, {unbounded, 0.37},
		},
		models.FilingMarriedFilingSeparately: {
			{12_150, 0.10}, {49_475, 0.12}, {105_525, 0.22}, {201_450, 0.24},
			{255_800, 0.32}, {383_775, 0.35}, {unbounded, 0.37},
		},
		models.FilingHeadOfHousehold: {
			{17_350, 0.10}, {66_200, 0.12}, {105_525, 0.22}, {201_450, 0.24},
			{255_800, 0.32}, {639_750, 0.35}, {unbounded, 0.37},
		},
	},
}

// NIIT applies when modified adjusted gross income exceeds these thresholds.
var niitThresholds = map[models.FilingStatus]float64{
	models.FilingSingle:                  200_000,
	models.FilingMarriedFilingJointly:    250_000,
	models.FilingMarriedFilingSeparately: 125_000,
	models.FilingHeadOfHousehold:         200_000,
}

// toBrackets converts an internal table to the wire representation, where the
// unbounded marker becomes a nil upper bound.
func toBrackets(table []bracket) []models.TaxBracket {
	out := make([]models.TaxBracket, 0, len(table))
	for _, b := range table {
		if b.upTo < 0 {
			out = append(out, models.TaxBracket{UpTo: nil, Rate: b.rate})
		} else {
			upTo := b.upTo
			out = append(out, models.TaxBracket{UpTo: &upTo, Rate: b.rate})
		}
	}
	return out
}
