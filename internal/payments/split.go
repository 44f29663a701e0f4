package payments

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RevenueSplit is the division of a gross gateway amount, in kobo
type RevenueSplit struct {
	GrossKobo          int64
	DeveloperShareKobo int64
	SchoolNetKobo      int64
}

// CalculateSplit divides grossKobo between the platform and the school.
// The platform share is rounded half-up to the nearest kobo. Negative
// percentages count as zero, and the school share never drops below zero.
func CalculateSplit(grossKobo int64, platformSharePercent decimal.Decimal) RevenueSplit {
	if grossKobo < 0 {
		grossKobo = 0
	}
	if platformSharePercent.IsNegative() {
		platformSharePercent = decimal.Zero
	}

	developer := decimal.NewFromInt(grossKobo).
		Mul(platformSharePercent).
		Div(hundred).
		Round(0).
		IntPart()

	net := grossKobo - developer
	if net < 0 {
		net = 0
	}

	return RevenueSplit{
		GrossKobo:          grossKobo,
		DeveloperShareKobo: developer,
		SchoolNetKobo:      net,
	}
}

// KoboToMajor converts minor units to major currency units without rounding
func KoboToMajor(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(hundred)
}

// SchoolNetMajor is the school's share in major units, rounded to 2 decimals
func (s RevenueSplit) SchoolNetMajor() decimal.Decimal {
	return KoboToMajor(s.SchoolNetKobo).Round(2)
}

// GrossMajor is the gross amount in major units
func (s RevenueSplit) GrossMajor() decimal.Decimal {
	return KoboToMajor(s.GrossKobo)
}

// MajorToKobo converts a major-unit amount to kobo, rounding half-up
func MajorToKobo(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
