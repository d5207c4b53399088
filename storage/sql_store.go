package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"rental-scraper/models"
	"rental-scraper/utils"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver    = errors.New("store: unknown driver")
	ErrInvalidTableName = errors.New("store: invalid table name")
	ErrSchemaMismatch   = errors.New("store: unrecognised listing table layout")

	tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	Table  string

	// ConnectAttempts bounds the ping retries while the database comes up.
	ConnectAttempts int
	ConnectDelay    time.Duration
	Logger          *utils.Logger
}

// schema names the physical columns of a listing table. id and scrapedAt are
// empty when the table has no such column.
type schema struct {
	id          string
	rentPrice   string
	squareMeter string
	address     string
	url         string
	plz         string
	scrapedAt   string
}

var nativeSchema = schema{
	id:          "id",
	rentPrice:   "rent_price",
	squareMeter: "square_meter",
	address:     "address",
	url:         "url",
	plz:         "plz",
	scrapedAt:   "scraped_at",
}

// legacySchema is the layout of rental_data.db tables written by the earlier
// pandas-based scraper. Rows are appended to it as-is.
var legacySchema = schema{
	rentPrice:   "Rent Price",
	squareMeter: "Square Meter",
	address:     "Address",
	url:         "URL",
	plz:         "PLZ",
}

func (sc schema) columns() []string {
	var cols []string
	for _, c := range []string{sc.id, sc.rentPrice, sc.squareMeter, sc.address, sc.url, sc.plz, sc.scrapedAt} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func (sc schema) matches(present map[string]bool) bool {
	for _, c := range sc.columns() {
		if !present[c] {
			return false
		}
	}
	return true
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// SQLStore persists listings to SQLite or PostgreSQL through database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
	table  string
	schema schema
	logger *utils.Logger
}

// Open connects to the database, waits for it to answer a ping, creates the
// listing table if needed, and returns a ready-to-use SQLStore.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	if !tableNameRegexp.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, opts.Table)
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDiscardLogger()
	}

	var sqlDriver string
	switch opts.Driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
	case DriverPostgres:
		sqlDriver = "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	db, err := sql.Open(sqlDriver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// a single connection keeps ":memory:" databases alive and serialises writers
		db.SetMaxOpenConns(1)
	}

	delay := opts.ConnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	retry := &utils.RetryConfig{
		MaxAttempts: opts.ConnectAttempts,
		BaseDelay:   delay,
		Logger:      opts.Logger,
	}
	if err := retry.Do(ctx, "store ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	s := &SQLStore{db: db, driver: opts.Driver, table: opts.Table, logger: opts.Logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	if s.schema.id == "" {
		s.logger.Info("[store] Table %s uses the legacy column layout", opts.Table)
	}
	s.logger.Debug("[store] Connected (%s), table %s ready", opts.Driver, opts.Table)
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	var stmts []string
	switch s.driver {
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
				id           SERIAL PRIMARY KEY,
				rent_price   INTEGER,
				square_meter DOUBLE PRECISION,
				address      TEXT        NOT NULL DEFAULT '',
				url          TEXT        NOT NULL,
				plz          VARCHAR(4),
				scraped_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				rent_price   INTEGER,
				square_meter REAL,
				address      TEXT      NOT NULL DEFAULT '',
				url          TEXT      NOT NULL,
				plz          TEXT,
				scraped_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		}
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	sc, err := s.detectSchema(ctx)
	if err != nil {
		return err
	}
	s.schema = sc

	// url is indexed but not unique; AppendNew keeps it unique.
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_` + s.table + `_url ON ` + s.table + `(` + quote(sc.url) + `)`,
		`CREATE INDEX IF NOT EXISTS idx_` + s.table + `_plz ON ` + s.table + `(` + quote(sc.plz) + `)`,
	} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// detectSchema reads the column names of an existing table and picks the
// matching layout.
func (s *SQLStore) detectSchema(ctx context.Context) (schema, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+s.table+` WHERE 1 = 0`)
	if err != nil {
		return schema{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return schema{}, err
	}
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}

	switch {
	case nativeSchema.matches(present):
		return nativeSchema, nil
	case legacySchema.matches(present):
		return legacySchema, nil
	}
	return schema{}, fmt.Errorf("%w: %s has columns %v", ErrSchemaMismatch, s.table, cols)
}

// AppendNew reads every stored URL, drops listings already present, and
// inserts the remainder in a single transaction.
func (s *SQLStore) AppendNew(ctx context.Context, listings []*models.Listing) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.storedURLs(ctx, tx)
	if err != nil {
		return 0, err
	}

	fresh := FilterNew(listings, existing)
	if len(fresh) == 0 {
		if err = tx.Commit(); err != nil {
			return 0, fmt.Errorf("store: commit: %w", err)
		}
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, s.insertQuery())
	if err != nil {
		return 0, fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, l := range fresh {
		args := []any{nullInt(l.RentPrice), nullFloat(l.SquareMeters), l.Address, l.URL, nullString(l.PLZ)}
		if s.schema.scrapedAt != "" {
			scrapedAt := l.ScrapedAt
			if scrapedAt.IsZero() {
				scrapedAt = now
			}
			args = append(args, scrapedAt)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("store: insert %s: %w", l.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}

	s.logger.Debug("[store] Appended %d of %d listings to %s", len(fresh), len(listings), s.table)
	return len(fresh), nil
}

func (s *SQLStore) storedURLs(ctx context.Context, tx *sql.Tx) (*utils.URLSet, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+quote(s.schema.url)+` FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("store: read urls: %w", err)
	}
	defer rows.Close()

	set := utils.NewURLSet()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("store: scan url: %w", err)
		}
		set.Add(u)
	}
	return set, rows.Err()
}

func (s *SQLStore) insertQuery() string {
	sc := s.schema
	cols := []string{quote(sc.rentPrice), quote(sc.squareMeter), quote(sc.address), quote(sc.url), quote(sc.plz)}
	if sc.scrapedAt != "" {
		cols = append(cols, quote(sc.scrapedAt))
	}
	marks := make([]string, len(cols))
	for i := range cols {
		if s.driver == DriverPostgres {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		s.table, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// FetchAll retrieves all stored listings, used by the stats command.
func (s *SQLStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	sc := s.schema
	cols := []string{quote(sc.rentPrice), quote(sc.squareMeter), quote(sc.address), quote(sc.url), quote(sc.plz)}
	if sc.id != "" {
		cols = append(cols, quote(sc.id))
	}
	if sc.scrapedAt != "" {
		cols = append(cols, quote(sc.scrapedAt))
	}
	q := `SELECT ` + strings.Join(cols, ", ") + ` FROM ` + s.table
	if sc.id != "" {
		q += ` ORDER BY ` + quote(sc.id)
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var (
			l         models.Listing
			rent      sql.NullInt64
			area      sql.NullFloat64
			address   sql.NullString
			plz       sql.NullString
			scrapedAt sql.NullTime
		)
		dest := []any{&rent, &area, &address, &l.URL, &plz}
		if sc.id != "" {
			dest = append(dest, &l.ID)
		}
		if sc.scrapedAt != "" {
			dest = append(dest, &scrapedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		if rent.Valid {
			l.RentPrice = models.IntPtr(int(rent.Int64))
		}
		if area.Valid {
			l.SquareMeters = models.FloatPtr(area.Float64)
		}
		l.Address = address.String
		if plz.Valid {
			l.PLZ = models.StringPtr(plz.String)
		}
		if scrapedAt.Valid {
			l.ScrapedAt = scrapedAt.Time
		}
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// Count returns the number of stored rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
