package storage

import (
	"context"

	"rental-scraper/models"
)

// ListingStore is the interface any durable backend must satisfy.
type ListingStore interface {
	// AppendNew inserts the listings whose URL is not stored yet and
	// returns how many rows were appended.
	AppendNew(ctx context.Context, listings []*models.Listing) (int, error)
	FetchAll(ctx context.Context) ([]*models.Listing, error)
	Close() error
}

// TableWriter is the interface for exporting the listings of one run.
type TableWriter interface {
	WriteTable(t *models.ListingTable) error
	Close() error
}
