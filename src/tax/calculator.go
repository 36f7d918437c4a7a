package tax

import (
	"fmt"

	"github.com/username/optionstaxhub/backend/src/models"
)

// ErrUnsupportedYear is returned for tax years without a bracket table.
// It is a configuration error: the request can continue with a fallback
// profile, but the caller should surface it.
type ErrUnsupportedYear struct {
	Year int
}

func (e ErrUnsupportedYear) Error() string {
	return fmt.Sprintf("tax brackets not supported for year %d", e.Year)
}

// SupportedYear reports whether a bracket table exists for the year.
func SupportedYear(year int) bool {
	_, ok := ordinaryBrackets[year]
	return ok
}

// lookupRate finds the rate of the bracket whose half-open interval contains
// income. The last bracket is unbounded, so a rate is always found.
func lookupRate(table []bracket, income float64) float64 {
	for _, b := range table {
		if b.upTo < 0 || income <= b.upTo {
			return b.rate
		}
	}
	return table[len(table)-1].rate
}

func filingTable(tables map[models.FilingStatus][]bracket, status models.FilingStatus) []bracket {
	if t, ok := tables[status]; ok {
		return t
	}
	return tables[models.FilingSingle]
}

// MarginalOrdinaryRate is the rate applied to the next dollar of ordinary
// income (and therefore to short-term capital gains).
func MarginalOrdinaryRate(year int, status models.FilingStatus, income float64) (float64, error) {
	tables, ok := ordinaryBrackets[year]
	if !ok {
		return 0, ErrUnsupportedYear{Year: year}
	}
	return lookupRate(filingTable(tables, status), income), nil
}

// LTCGRate is the long-term capital gains rate at the given income level.
func LTCGRate(year int, status models.FilingStatus, income float64) (float64, error) {
	tables, ok := ltcgBrackets[year]
	if !ok {
		return 0, ErrUnsupportedYear{Year: year}
	}
	return lookupRate(filingTable(tables, status), income), nil
}

// NIITApplies reports whether the 3.8% Net Investment Income Tax applies.
func NIITApplies(status models.FilingStatus, income float64) bool {
	threshold, ok := niitThresholds[status]
	if !ok {
		threshold = 200_000
	}
	return income > threshold
}

// CapitalLossLimit is the annual capital loss deduction limit against
// ordinary income: $3,000 for most filers, $1,500 for married filing
// separately.
func CapitalLossLimit(status models.FilingStatus) float64 {
	if status == models.FilingMarriedFilingSeparately {
		return CapitalLossDeductionLimitMFS
	}
	return CapitalLossDeductionLimit
}

// SavingsEstimate estimates the tax savings from harvesting a capital loss
// of the given magnitude. Short-term losses offset income at the marginal
// ordinary rate, long-term at the applicable LTCG rate; the NIIT surcharge
// is added when the filer's income exceeds the threshold.
func SavingsEstimate(loss float64, isLongTerm bool, profile models.TaxProfile) (float64, error) {
	if loss <= 0 {
		return 0, nil
	}

	var rate float64
	var err error
	if isLongTerm {
		rate, err = LTCGRate(profile.TaxYear, profile.FilingStatus, profile.EstimatedAnnualIncome)
	} else {
		rate, err = MarginalOrdinaryRate(profile.TaxYear, profile.FilingStatus, profile.EstimatedAnnualIncome)
	}
	if err != nil {
		return 0, err
	}

	if NIITApplies(profile.FilingStatus, profile.EstimatedAnnualIncome) {
		rate += NIITRate
	}
	return loss * rate, nil
}

// BracketsFor returns the full bracket summary for a profile. This backs the
// independently queryable GET /api/tax-brackets endpoint.
func BracketsFor(profile models.TaxProfile) (models.TaxBracketsSummary, error) {
	ordTables, ok := ordinaryBrackets[profile.TaxYear]
	if !ok {
		return models.TaxBracketsSummary{}, ErrUnsupportedYear{Year: profile.TaxYear}
	}
	ltcgTables := ltcgBrackets[profile.TaxYear]

	status := profile.FilingStatus
	if !status.Valid() {
		status = models.FilingSingle
	}

	ordTable := filingTable(ordTables, status)
	ltcgTable := filingTable(ltcgTables, status)

	threshold, ok := niitThresholds[status]
	if !ok {
		threshold = 200_000
	}

	return models.TaxBracketsSummary{
		TaxYear:                      profile.TaxYear,
		FilingStatus:                 status,
		OrdinaryIncomeBrackets:       toBrackets(ordTable),
		LongTermCapitalGainsBrackets: toBrackets(ltcgTable),
		NIITThreshold:                threshold,
		NIITRate:                     NIITRate,
		CapitalLossLimit:             CapitalLossLimit(status),
		MarginalOrdinaryRate:         lookupRate(ordTable, profile.EstimatedAnnualIncome),
		ApplicableLTCGRate:           lookupRate(ltcgTable, profile.EstimatedAnnualIncome),
	}, nil
}
