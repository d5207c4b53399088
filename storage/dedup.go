package storage

import (
	"rental-scraper/models"
	"rental-scraper/utils"
)

// FilterNew returns the listings whose URL is not in existing, keeping input
// order. A URL repeated within listings is kept once. existing is updated
// with every URL that is returned.
func FilterNew(listings []*models.Listing, existing *utils.URLSet) []*models.Listing {
	fresh := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil || l.URL == "" {
			continue
		}
		if !existing.Add(l.URL) {
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh
}
