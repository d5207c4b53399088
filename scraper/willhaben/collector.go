package willhaben

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-scraper/config"
	"rental-scraper/utils"
)

// Collector walks the paginated search results and gathers detail-page URLs.
type Collector struct {
	browser Browser
	sel     config.Selectors
	baseURL string
	pages   int
	logger  *utils.Logger
}

// NewCollector creates a Collector for pages 1..pages of baseURL.
func NewCollector(browser Browser, sel config.Selectors, baseURL string, pages int, logger *utils.Logger) *Collector {
	return &Collector{browser: browser, sel: sel, baseURL: baseURL, pages: pages, logger: logger}
}

// Collect loads every search page in one browser session and returns the
// listing links in page order. Links are not deduplicated.
func (c *Collector) Collect(ctx context.Context) ([]string, error) {
	session, err := c.browser.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Debug("[collector] Closing browser: %v", err)
		}
	}()

	urls := make([]string, 0)
	for page := 1; page <= c.pages; page++ {
		pageURL, err := PageURL(c.baseURL, c.sel.PageParam, page)
		if err != nil {
			return nil, err
		}
		c.logger.Info("[collector] Scraping search page %d: %s", page, pageURL)

		html, err := session.Load(ctx, pageURL, c.sel.SearchReady)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}

		links, err := ParseListingLinks(html, c.sel)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}
		if len(links) == 0 {
			c.logger.Warn("[collector] Search page %d returned no listing links", page)
		}
		c.logger.Debug("[collector] Page %d: %d links", page, len(links))

		urls = append(urls, links...)
	}

	return urls, nil
}

// PageURL sets the pagination query parameter on base.
func PageURL(base, param string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("search url %q: %w", base, err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseListingLinks returns the href of every anchor containing the detail
// path marker, in document order, resolved against the site origin.
func ParseListingLinks(html string, sel config.Selectors) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	origin, err := url.Parse(sel.SiteOrigin)
	if err != nil {
		return nil, fmt.Errorf("site origin %q: %w", sel.SiteOrigin, err)
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, sel.DetailPathMarker) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, origin.ResolveReference(ref).String())
	})
	return links, nil
}
