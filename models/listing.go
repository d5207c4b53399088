package models

import "time"

// AddressPlaceholder is stored when a rendered detail page has no address node.
// It is kept as a literal string so rows written by earlier runs stay comparable.
const AddressPlaceholder = "None"

// Fields is the raw result of extracting one rendered detail page.
// A nil pointer means the value could not be found or parsed.
type Fields struct {
	RentPrice    *int
	SquareMeters *float64
	Address      string
}

// HasPrice reports whether the rent price was extracted.
func (f Fields) HasPrice() bool {
	return f.RentPrice != nil
}

// Complete reports whether price, area and a real address were all extracted.
func (f Fields) Complete() bool {
	return f.RentPrice != nil && f.SquareMeters != nil &&
		f.Address != "" && f.Address != AddressPlaceholder
}

// Listing is one accepted rental listing.
type Listing struct {
	ID           int64
	Index        int
	RentPrice    *int
	SquareMeters *float64
	Address      string
	URL          string
	PLZ          *string
	ScrapedAt    time.Time
}

// PricePerSquareMeter returns rent divided by area, or 0 when either is missing.
func (l *Listing) PricePerSquareMeter() float64 {
	if l.RentPrice == nil || l.SquareMeters == nil || *l.SquareMeters <= 0 {
		return 0
	}
	return float64(*l.RentPrice) / *l.SquareMeters
}

// ListingTable accumulates the listings of a single run in insertion order.
type ListingTable struct {
	rows []*Listing
}

// NewListingTable returns an empty table.
func NewListingTable() *ListingTable {
	return &ListingTable{rows: make([]*Listing, 0)}
}

// Append adds a listing at the end of the table.
func (t *ListingTable) Append(l *Listing) {
	t.rows = append(t.rows, l)
}

// Rows returns the listings in insertion order.
func (t *ListingTable) Rows() []*Listing {
	return t.rows
}

// Len returns the number of listings in the table.
func (t *ListingTable) Len() int {
	return len(t.rows)
}

// RentReport holds the computed statistics over stored listings.
type RentReport struct {
	TotalListings    int
	PricedListings   int
	AverageRent      float64
	MinRent          int
	MaxRent          int
	AverageArea      float64
	AverageRentPerM2 float64
	MostExpensive    *Listing
	ListingsByPLZ    map[string]int
}

// IntPtr, FloatPtr and StringPtr build optional field values.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }
