package scraper

import (
	"context"
	"fmt"
	"time"

	"rental-scraper/models"
	"rental-scraper/services"
	"rental-scraper/utils"
)

// LinkCollector produces the detail-page URLs to visit, in visiting order.
type LinkCollector interface {
	Collect(ctx context.Context) ([]string, error)
}

// ListingFetcher loads one detail page and extracts its fields. A page that
// could not be loaded yields empty Fields and a nil error.
type ListingFetcher interface {
	FetchListing(ctx context.Context, url string) (models.Fields, error)
}

// Pacer blocks between two listing attempts.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Options controls a Scraper run.
type Options struct {
	// MaxListings caps the number of attempted URLs. Zero or less means no cap.
	MaxListings int
	// DoubleDelay waits twice per attempt instead of once.
	DoubleDelay bool
	// RequireAllFields only accepts listings where price, area and address
	// were all extracted. By default a price alone is enough.
	RequireAllFields bool
}

// Scraper sequences collection, per-listing extraction and pacing.
type Scraper struct {
	collector LinkCollector
	fetcher   ListingFetcher
	pacer     Pacer
	opts      Options
	logger    *utils.Logger
	now       func() time.Time
}

// New creates a Scraper.
func New(collector LinkCollector, fetcher ListingFetcher, pacer Pacer, opts Options, logger *utils.Logger) *Scraper {
	return &Scraper{
		collector: collector,
		fetcher:   fetcher,
		pacer:     pacer,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Scrape collects listing URLs, visits them and resolves the postal code of
// every accepted listing.
func (s *Scraper) Scrape(ctx context.Context) (*models.ListingTable, error) {
	urls, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect listing urls: %w", err)
	}
	s.logger.Info("[scraper] Collected %d listing URLs", len(urls))

	table, err := s.Run(ctx, urls)
	services.ResolvePLZ(table)
	if err != nil {
		return table, err
	}

	s.logger.Info("[scraper] Scrape complete: %d listings accepted", table.Len())
	return table, nil
}

// Run visits urls in order until MaxListings have been attempted. A listing's
// Index is its 1-based position in urls, whether or not earlier ones were
// accepted. On error the listings accepted so far are returned with it.
func (s *Scraper) Run(ctx context.Context, urls []string) (*models.ListingTable, error) {
	table := models.NewListingTable()
	attempted := 0

	for i, url := range urls {
		if s.opts.MaxListings > 0 && attempted >= s.opts.MaxListings {
			s.logger.Info("[scraper] Reached maximum of %d listings, stopping", s.opts.MaxListings)
			break
		}
		index := i + 1

		fields, err := s.fetcher.FetchListing(ctx, url)
		if err != nil {
			return table, fmt.Errorf("listing %d (%s): %w", index, url, err)
		}
		if err := s.pacer.Wait(ctx); err != nil {
			return table, err
		}

		if s.accept(fields) {
			table.Append(&models.Listing{
				Index:        index,
				RentPrice:    fields.RentPrice,
				SquareMeters: fields.SquareMeters,
				Address:      fields.Address,
				URL:          url,
				ScrapedAt:    s.now().UTC(),
			})
			s.logger.Info("[scraper] Listing number %d scraped", index)
		} else {
			s.logger.Warn("[scraper] Listing number %d has no usable data, skipped: %s", index, url)
		}
		attempted++

		if s.opts.DoubleDelay {
			if err := s.pacer.Wait(ctx); err != nil {
				return table, err
			}
		}
	}

	return table, nil
}

func (s *Scraper) accept(f models.Fields) bool {
	if s.opts.RequireAllFields {
		return f.Complete()
	}
	return f.HasPrice()
}
