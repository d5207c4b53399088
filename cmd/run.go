package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rental-scraper/config"
	"rental-scraper/models"
	"rental-scraper/scraper"
	"rental-scraper/scraper/willhaben"
	"rental-scraper/services"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

var runFlags struct {
	pages       int
	maxListings int
	delay       float64
}

var runCmd = &cobra.Command{
	Use:   "run [--pages N] [--max N] [--delay SECONDS]",
	Short: "Scrapes the search results and appends unseen listings to the store.",
	RunE:  runScrape,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.pages, "pages", 0, "Number of search pages to scrape (overrides PAGES_TO_SCRAPE).")
	f.IntVar(&runFlags.maxListings, "max", 0, "Maximum number of detail pages to visit, 0 for all (overrides MAX_LISTINGS).")
	f.Float64Var(&runFlags.delay, "delay", 0, "Base delay in seconds between detail pages (overrides DELAY_SECONDS).")

	rootCmd.AddCommand(runCmd)
	rootCmd.Flags().AddFlagSet(f)
	rootCmd.RunE = runScrape
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("pages") {
		cfg.PagesToScrape = runFlags.pages
	}
	if flags.Changed("max") {
		cfg.MaxListings = runFlags.maxListings
	}
	if flags.Changed("delay") {
		cfg.DelaySeconds = runFlags.delay
	}
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	logger.Info("=== willhaben rental scraper starting ===")
	logger.Info("Config: pages: %d | max listings: %d | delay: %.1fs ± %.1fs | store: %s (%s)",
		cfg.PagesToScrape, cfg.MaxListings, cfg.DelaySeconds, cfg.JitterSeconds, cfg.StoreDriver, cfg.TableName)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	table, err := newScraper(cfg, logger).Scrape(ctx)
	if err != nil {
		if table != nil && table.Len() > 0 {
			logger.Warn("%d listings scraped before the failure were not stored", table.Len())
		}
		return fmt.Errorf("scrape: %w", err)
	}

	services.NewInsightService(logger).PrintTable(cmd.OutOrStdout(), table)

	return saveRun(ctx, store, table, cfg.CSVOutputPath, logger)
}

// saveRun writes the optional CSV snapshot and appends the run to the store.
// A snapshot failure is logged and never prevents persistence.
func saveRun(ctx context.Context, store storage.ListingStore, table *models.ListingTable, csvPath string, logger *utils.Logger) error {
	if csvPath != "" {
		if err := writeSnapshot(csvPath, table); err != nil {
			logger.Error("CSV write failed: %v", err)
		} else {
			logger.Info("Run snapshot saved to %s", csvPath)
		}
	}
	return persist(ctx, store, table, logger)
}

func writeSnapshot(path string, table *models.ListingTable) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return exportTable(w, table)
}

func newScraper(cfg *config.Config, logger *utils.Logger) *scraper.Scraper {
	browser := willhaben.NewChromeBrowser(willhaben.ChromeOptions{
		Headless:     cfg.Headless,
		ChromeBin:    cfg.ChromeBin,
		WaitTimeout:  cfg.WaitTimeout,
		ScrollPause:  cfg.ScrollPause,
		CookieButton: cfg.Selectors.CookieButton,
	}, logger)

	collector := willhaben.NewCollector(browser, cfg.Selectors, cfg.SearchBaseURL, cfg.PagesToScrape, logger)
	fetcher := willhaben.NewDetailFetcher(
		willhaben.NewPrechecker(cfg.PrecheckTimeout, cfg.PrecheckRetries),
		browser,
		services.NewExtractor(cfg.Selectors, logger),
		cfg.Selectors.DetailReady,
		logger,
	)

	return scraper.New(collector, fetcher, utils.NewPacer(cfg.Delay(), cfg.Jitter()), scraper.Options{
		MaxListings:      cfg.MaxListings,
		DoubleDelay:      cfg.DoubleDelay,
		RequireAllFields: cfg.RequireAllFields,
	}, logger)
}

func exportTable(w storage.TableWriter, table *models.ListingTable) error {
	defer w.Close()
	return w.WriteTable(table)
}

func persist(ctx context.Context, store storage.ListingStore, table *models.ListingTable, logger *utils.Logger) error {
	n, err := store.AppendNew(ctx, table.Rows())
	if err != nil {
		return err
	}
	logger.Info("Stored %d new listings (%d already known)", n, table.Len()-n)
	return nil
}
