package willhaben

import (
	"context"
	"net/http"

	"rental-scraper/models"
	"rental-scraper/utils"
)

// StatusChecker reports the HTTP status of a URL without rendering it.
type StatusChecker interface {
	Check(ctx context.Context, url string) (int, error)
}

// FieldExtractor turns rendered markup into listing fields.
type FieldExtractor interface {
	Extract(html string) (models.Fields, error)
}

// DetailFetcher renders one detail page per call in a fresh browser session.
type DetailFetcher struct {
	checker   StatusChecker
	browser   Browser
	extractor FieldExtractor
	ready     string
	logger    *utils.Logger
}

// NewDetailFetcher creates a DetailFetcher. readySelector must be present on
// the page before its markup is read.
func NewDetailFetcher(checker StatusChecker, browser Browser, extractor FieldExtractor, readySelector string, logger *utils.Logger) *DetailFetcher {
	return &DetailFetcher{
		checker:   checker,
		browser:   browser,
		extractor: extractor,
		ready:     readySelector,
		logger:    logger,
	}
}

// FetchListing prechecks url and, on 200, renders and extracts it. Any other
// status yields empty fields so the listing is skipped.
func (f *DetailFetcher) FetchListing(ctx context.Context, url string) (models.Fields, error) {
	status, err := f.checker.Check(ctx, url)
	if err != nil {
		return models.Fields{}, err
	}
	if status != http.StatusOK {
		f.logger.Warn("[detail] Failed to retrieve %s: HTTP %d", url, status)
		return models.Fields{}, nil
	}

	session, err := f.browser.NewSession(ctx)
	if err != nil {
		return models.Fields{}, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			f.logger.Debug("[detail] Closing browser: %v", err)
		}
	}()

	html, err := session.Load(ctx, url, f.ready)
	if err != nil {
		return models.Fields{}, err
	}

	fields, err := f.extractor.Extract(html)
	if err != nil {
		return models.Fields{}, err
	}
	f.logger.Debug("[detail] %s: price=%v area=%v address=%q",
		url, fields.RentPrice != nil, fields.SquareMeters != nil, fields.Address)
	return fields, nil
}
