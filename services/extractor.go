package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"rental-scraper/config"
	"rental-scraper/models"
	"rental-scraper/utils"
)

// areaRegexp captures the first numeric run, e.g. "55,5" or "1.020,75".
var areaRegexp = regexp.MustCompile(`\d[\d.,]*`)

// Extractor turns rendered detail-page markup into listing fields.
type Extractor struct {
	sel    config.Selectors
	logger *utils.Logger
}

// NewExtractor creates an Extractor using the given selectors.
func NewExtractor(sel config.Selectors, logger *utils.Logger) *Extractor {
	return &Extractor{sel: sel, logger: logger}
}

// Extract parses html and returns price, area and address. Missing nodes and
// unparseable values never fail the extraction; they yield nil (or the address
// placeholder).
func (e *Extractor) Extract(html string) (models.Fields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Fields{}, fmt.Errorf("extract: parse html: %w", err)
	}

	fields := models.Fields{Address: models.AddressPlaceholder}

	if node := doc.Find(e.sel.Price).First(); node.Length() > 0 {
		raw := node.Text()
		fields.RentPrice = ParsePrice(raw)
		if fields.RentPrice == nil {
			e.logger.Debug("[extractor] Unparseable price %q", raw)
		}
	}

	if raw, ok := e.findAreaText(doc); ok {
		fields.SquareMeters = ParseArea(raw)
		if fields.SquareMeters == nil {
			e.logger.Debug("[extractor] Unparseable area %q", raw)
		}
	}

	if node := doc.Find(e.sel.Address).First(); node.Length() > 0 {
		fields.Address = strings.TrimSpace(node.Text())
	}

	return fields, nil
}

// findAreaText returns the text of the first AreaTag element whose sole
// content is a text node containing the area marker. A chain of single
// children is followed down to that text node, so <div><span>55 m²</span></div>
// matches the outer div.
func (e *Extractor) findAreaText(doc *goquery.Document) (string, bool) {
	var found string
	ok := false
	doc.Find(e.sel.AreaTag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text, single := soleText(s.Get(0))
		if single && strings.Contains(text, e.sel.AreaMarker) {
			found = strings.TrimSpace(text)
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// soleText descends while n has exactly one child and reports the text node
// it ends on.
func soleText(n *html.Node) (string, bool) {
	for n != nil && n.Type == html.ElementNode {
		if n.FirstChild == nil || n.FirstChild != n.LastChild {
			return "", false
		}
		n = n.FirstChild
	}
	if n == nil || n.Type != html.TextNode {
		return "", false
	}
	return n.Data, true
}

// ParsePrice converts a displayed rent like "€ 1.234,00" or "ab € 900" into
// its whole-euro amount. Cents are truncated.
func ParsePrice(raw string) *int {
	s := strings.ReplaceAll(raw, "€", "")
	s = strings.ReplaceAll(s, "ab", "")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	whole, _, _ := strings.Cut(s, ",")

	n, err := strconv.Atoi(whole)
	if err != nil {
		return nil
	}
	return &n
}

// ParseArea extracts the floor area in square meters from text like "55,5 m²".
// When a comma is present, dots are thousands separators.
func ParseArea(raw string) *float64 {
	match := areaRegexp.FindString(raw)
	if match == "" {
		return nil
	}
	if strings.Contains(match, ",") {
		match = strings.ReplaceAll(match, ".", "")
		match = strings.ReplaceAll(match, ",", ".")
	}
	match = strings.TrimRight(match, ".")

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &f
}
