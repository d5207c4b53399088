package services

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"rental-scraper/models"
	"rental-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.RentReport {
	report := &models.RentReport{
		ListingsByPLZ: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var rentTotal, areaTotal, perM2Total float64
	var areaCount, perM2Count int

	for _, l := range listings {
		if l.PLZ != nil {
			report.ListingsByPLZ[*l.PLZ]++
		}
		if l.SquareMeters != nil && *l.SquareMeters > 0 {
			areaTotal += *l.SquareMeters
			areaCount++
		}
		if ppm := l.PricePerSquareMeter(); ppm > 0 {
			perM2Total += ppm
			perM2Count++
		}
		if l.RentPrice == nil {
			continue
		}

		rent := *l.RentPrice
		if report.PricedListings == 0 || rent < report.MinRent {
			report.MinRent = rent
		}
		if report.PricedListings == 0 || rent > report.MaxRent {
			report.MaxRent = rent
			report.MostExpensive = l
		}
		rentTotal += float64(rent)
		report.PricedListings++
	}

	if report.PricedListings > 0 {
		report.AverageRent = round2(rentTotal / float64(report.PricedListings))
	}
	if areaCount > 0 {
		report.AverageArea = round2(areaTotal / float64(areaCount))
	}
	if perM2Count > 0 {
		report.AverageRentPerM2 = round2(perM2Total / float64(perM2Count))
	}

	s.logger.Debug("[insights] %d listings, %d with rent, %d with area, %d postal codes",
		report.TotalListings, report.PricedListings, areaCount, len(report.ListingsByPLZ))
	return report
}

// Print renders the report as tables on w.
func (s *InsightService) Print(w io.Writer, r *models.RentReport) {
	overview := newTable(w, "Rent statistics")
	overview.AppendHeader(table.Row{"Metric", "Value"})
	overview.AppendRow(table.Row{"Stored listings", r.TotalListings})
	overview.AppendRow(table.Row{"Listings with rent", r.PricedListings})
	if r.PricedListings > 0 {
		overview.AppendRow(table.Row{"Average rent", fmt.Sprintf("€ %.2f", r.AverageRent)})
		overview.AppendRow(table.Row{"Minimum rent", fmt.Sprintf("€ %d", r.MinRent)})
		overview.AppendRow(table.Row{"Maximum rent", fmt.Sprintf("€ %d", r.MaxRent)})
	}
	if r.AverageArea > 0 {
		overview.AppendRow(table.Row{"Average area", fmt.Sprintf("%.2f m²", r.AverageArea)})
	}
	if r.AverageRentPerM2 > 0 {
		overview.AppendRow(table.Row{"Average rent per m²", fmt.Sprintf("€ %.2f", r.AverageRentPerM2)})
	}
	overview.Render()

	if r.MostExpensive != nil {
		top := newTable(w, "Most expensive listing")
		top.AppendRow(table.Row{"Rent", fmt.Sprintf("€ %d", *r.MostExpensive.RentPrice)})
		top.AppendRow(table.Row{"Address", r.MostExpensive.Address})
		top.AppendRow(table.Row{"URL", truncate(r.MostExpensive.URL, 80)})
		top.Render()
	}

	if len(r.ListingsByPLZ) == 0 {
		return
	}

	type plzCount struct {
		plz   string
		count int
	}
	var counts []plzCount
	for plz, n := range r.ListingsByPLZ {
		counts = append(counts, plzCount{plz, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].plz < counts[j].plz
	})

	byPLZ := newTable(w, "Listings by PLZ")
	byPLZ.AppendHeader(table.Row{"PLZ", "Listings"})
	for _, c := range counts {
		byPLZ.AppendRow(table.Row{c.plz, c.count})
	}
	byPLZ.Render()
}

// PrintTable renders the listings collected in one run.
func (s *InsightService) PrintTable(w io.Writer, t *models.ListingTable) {
	tw := newTable(w, fmt.Sprintf("Scraped listings (%d)", t.Len()))
	tw.AppendHeader(table.Row{"#", "Rent", "m²", "Address", "PLZ", "URL"})
	for _, l := range t.Rows() {
		tw.AppendRow(table.Row{
			l.Index,
			optionalInt(l.RentPrice),
			optionalFloat(l.SquareMeters),
			truncate(l.Address, 40),
			optionalString(l.PLZ),
			truncate(l.URL, 60),
		})
	}
	tw.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func optionalString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
