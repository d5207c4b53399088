package willhaben

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rental-scraper/config"
	"rental-scraper/services"
	"rental-scraper/utils"
)

// fakeBrowser serves canned markup per URL and records what was loaded.
type fakeBrowser struct {
	pages    map[string]string
	loadErr  error
	sessions int
	closed   int
	loaded   []string
	ready    []string
}

func (b *fakeBrowser) NewSession(context.Context) (Session, error) {
	b.sessions++
	return &fakeSession{b: b}, nil
}

type fakeSession struct{ b *fakeBrowser }

func (s *fakeSession) Load(_ context.Context, url, ready string) (string, error) {
	s.b.loaded = append(s.b.loaded, url)
	s.b.ready = append(s.b.ready, ready)
	if s.b.loadErr != nil {
		return "", s.b.loadErr
	}
	return s.b.pages[url], nil
}

func (s *fakeSession) Close() error {
	s.b.closed++
	return nil
}

type fakeChecker struct {
	status int
	err    error
}

func (c fakeChecker) Check(context.Context, string) (int, error) {
	return c.status, c.err
}

const searchPage = `<html><body>
<a href="/iad/immobilien/d/mietwohnungen/wien/wien-1100-favoriten/wohnung-1/">one</a>
<a href="/iad/immobilien/mietwohnungen/wien?page=2">next</a>
<a href="https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-1020/wohnung-2/">two</a>
<a href="/iad/immobilien/d/haus-kaufen/wien/haus-3/">house</a>
<a>no href</a>
<a href="/iad/immobilien/d/mietwohnungen/wien/wien-1100-favoriten/wohnung-1/">one again</a>
</body></html>`

func TestParseListingLinks(t *testing.T) {
	links, err := ParseListingLinks(searchPage, config.DefaultSelectors())
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-1100-favoriten/wohnung-1/",
		"https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-1020/wohnung-2/",
		"https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-1100-favoriten/wohnung-1/",
	}, links)
}

func TestParseListingLinksEmptyPage(t *testing.T) {
	links, err := ParseListingLinks(`<html><body><p>Keine Treffer</p></body></html>`, config.DefaultSelectors())
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		base string
		page int
		want string
	}{
		{"https://www.willhaben.at/iad/immobilien/mietwohnungen/wien", 1, "https://www.willhaben.at/iad/immobilien/mietwohnungen/wien?page=1"},
		{"https://www.willhaben.at/iad/immobilien/mietwohnungen/wien?rows=30", 3, "https://www.willhaben.at/iad/immobilien/mietwohnungen/wien?page=3&rows=30"},
		{"https://www.willhaben.at/iad/immobilien/mietwohnungen/wien?page=9", 2, "https://www.willhaben.at/iad/immobilien/mietwohnungen/wien?page=2"},
	}
	for _, tt := range tests {
		got, err := PageURL(tt.base, "page", tt.page)
		if err != nil {
			t.Fatalf("PageURL(%q, %d): %v", tt.base, tt.page, err)
		}
		if got != tt.want {
			t.Errorf("PageURL(%q, %d) = %q, want %q", tt.base, tt.page, got, tt.want)
		}
	}
}

func TestCollectorWalksPagesInOneSession(t *testing.T) {
	base := "https://www.willhaben.at/iad/immobilien/mietwohnungen/wien"
	sel := config.DefaultSelectors()
	browser := &fakeBrowser{pages: map[string]string{
		base + "?page=1": searchPage,
		base + "?page=2": `<a href="/iad/immobilien/d/mietwohnungen/wien/wien-1220/wohnung-9/">x</a>`,
	}}

	urls, err := NewCollector(browser, sel, base, 2, utils.NewDiscardLogger()).Collect(context.Background())

	require.NoError(t, err)
	require.Len(t, urls, 4)
	require.Equal(t, "https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-1220/wohnung-9/", urls[3])
	require.Equal(t, 1, browser.sessions)
	require.Equal(t, 1, browser.closed)
	require.Equal(t, []string{base + "?page=1", base + "?page=2"}, browser.loaded)
	require.Equal(t, []string{sel.SearchReady, sel.SearchReady}, browser.ready)
}

func TestCollectorLoadError(t *testing.T) {
	boom := errors.New("timeout waiting for anchors")
	browser := &fakeBrowser{loadErr: boom}

	_, err := NewCollector(browser, config.DefaultSelectors(), "https://example.test/search", 2, utils.NewDiscardLogger()).
		Collect(context.Background())

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, browser.closed)
}

const detailPage = `<html><body>
<span data-testid="contact-box-price-box-price-value-0">€ 1.250,00</span>
<div>Wohnfläche</div><div>72,5 m²</div>
<div data-testid="object-location-address">Quellenstraße 12, 1100 Wien</div>
</body></html>`

func newDetailFetcher(checker StatusChecker, browser Browser) *DetailFetcher {
	sel := config.DefaultSelectors()
	logger := utils.NewDiscardLogger()
	return NewDetailFetcher(checker, browser, services.NewExtractor(sel, logger), sel.DetailReady, logger)
}

func TestDetailFetcherExtractsFields(t *testing.T) {
	url := "https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/x/"
	browser := &fakeBrowser{pages: map[string]string{url: detailPage}}

	fields, err := newDetailFetcher(fakeChecker{status: http.StatusOK}, browser).FetchListing(context.Background(), url)

	require.NoError(t, err)
	require.Equal(t, 1250, *fields.RentPrice)
	require.Equal(t, 72.5, *fields.SquareMeters)
	require.Equal(t, "Quellenstraße 12, 1100 Wien", fields.Address)
	require.Equal(t, 1, browser.sessions)
	require.Equal(t, 1, browser.closed)
}

func TestDetailFetcherSkipsNonOK(t *testing.T) {
	browser := &fakeBrowser{}

	fields, err := newDetailFetcher(fakeChecker{status: http.StatusNotFound}, browser).
		FetchListing(context.Background(), "https://example.test/gone")

	require.NoError(t, err)
	require.Nil(t, fields.RentPrice)
	require.Nil(t, fields.SquareMeters)
	require.Empty(t, fields.Address)
	require.Zero(t, browser.sessions)
}

func TestDetailFetcherPrecheckError(t *testing.T) {
	boom := errors.New("connection refused")

	_, err := newDetailFetcher(fakeChecker{err: boom}, &fakeBrowser{}).
		FetchListing(context.Background(), "https://example.test/x")

	require.ErrorIs(t, err, boom)
}

func TestDetailFetcherLoadError(t *testing.T) {
	boom := errors.New("wait timeout")
	browser := &fakeBrowser{loadErr: boom}

	_, err := newDetailFetcher(fakeChecker{status: http.StatusOK}, browser).
		FetchListing(context.Background(), "https://example.test/x")

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, browser.closed)
}

func TestPrecheckerReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	p := NewPrechecker(2*time.Second, 0)
	ctx := context.Background()

	status, err := p.Check(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	status, err = p.Check(ctx, srv.URL+"/gone")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)

	status, err = p.Check(ctx, srv.URL+"/down")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestPrecheckerRetriesServerErrors(t *testing.T) {
	var calls int32
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := NewPrechecker(2*time.Second, 2).Check(context.Background(), srv.URL)

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Equal(t, userAgent, agent.Load())
}

func TestPrecheckerConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPrechecker(time.Second, 0).Check(context.Background(), url)
	require.Error(t, err)
}

func TestChromeFlags(t *testing.T) {
	flags := chromeFlags(false)

	require.Equal(t, false, flags["headless"])
	require.Equal(t, true, flags["no-sandbox"])
	require.NotContains(t, flags, "disable-blink-features")
}

func TestNewChromeBrowserPrefersConfiguredBinary(t *testing.T) {
	b := NewChromeBrowser(ChromeOptions{ChromeBin: "/opt/custom/chrome"}, utils.NewDiscardLogger())
	require.Equal(t, "/opt/custom/chrome", b.bin)
}
