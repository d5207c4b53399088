package services

import (
	"regexp"

	"rental-scraper/models"
)

// plzRegexp matches Vienna postal codes: 1xx0, e.g. 1010, 1100, 1220.
var plzRegexp = regexp.MustCompile(`\b1\d{2}0\b`)

// ExtractPLZ returns the first Vienna-shaped postal code in address, or nil.
func ExtractPLZ(address string) *string {
	match := plzRegexp.FindString(address)
	if match == "" {
		return nil
	}
	return &match
}

// ResolvePLZ fills in the postal code of every listing in table.
func ResolvePLZ(table *models.ListingTable) {
	for _, l := range table.Rows() {
		l.PLZ = ExtractPLZ(l.Address)
	}
}
