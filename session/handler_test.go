package session

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-psdeals/config"
	"github.com/aluiziolira/go-scrape-psdeals/models"
	"github.com/aluiziolira/go-scrape-psdeals/pipeline"
	"github.com/aluiziolira/go-scrape-psdeals/scraper"
)

var errRefused = scraper.ErrConnection{Err: errors.New("connection refused")}

type fakeExtractor struct {
	regions    *models.RegionDirectory
	rows       models.ResultSet
	price      string
	errs       []error
	calls      int
	searchURLs []string
	detailURLs []string
}

func (f *fakeExtractor) nextErr() error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeExtractor) FetchRegions(context.Context) (*models.RegionDirectory, error) {
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.regions, nil
}

func (f *fakeExtractor) Search(_ context.Context, searchURL, _ string) (models.ResultSet, error) {
	f.searchURLs = append(f.searchURLs, searchURL)
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.rows, nil
}

func (f *fakeExtractor) FetchLowestPrice(_ context.Context, detailURL string) (string, error) {
	f.detailURLs = append(f.detailURLs, detailURL)
	if err := f.nextErr(); err != nil {
		return "", err
	}
	return f.price, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testRegions() *models.RegionDirectory {
	regions := models.NewRegionDirectory()
	regions.Add("United States | us", "us")
	regions.Add("United Kingdom GB | £", "gb")
	return regions
}

func greatGame() models.SearchResultRow {
	return models.SearchResultRow{
		Title:           "Great Game",
		Price:           "$59.99",
		Discount:        "0",
		DiscountedPrice: "$39.99",
		DetailLink:      "/game/great-game",
	}
}

func newTestHandler(extractor Extractor) (*Handler, *fakeClock) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	h := NewHandler(extractor, cfg)
	h.SetClock(clock.Now)
	return h, clock
}

func loaded(t *testing.T, h *Handler, clearOnSearch bool) Session {
	t.Helper()
	s, err := h.LoadRegions(context.Background(), New(clearOnSearch))
	require.NoError(t, err)
	return s
}

func TestLoadRegions(t *testing.T) {
	h, _ := newTestHandler(&fakeExtractor{regions: testRegions()})

	s := loaded(t, h, false)

	require.Equal(t, 2, s.Regions.Len())
	require.Equal(t, "United States | us", s.Region)
	require.Empty(t, s.Status)
	require.False(t, s.Disconnected)
}

func TestLoadRegionsCooldownAndReconnect(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), errs: []error{errRefused}}
	h, clock := newTestHandler(extractor)

	s, err := h.LoadRegions(context.Background(), New(false))
	require.ErrorIs(t, err, scraper.ErrConnectivity)
	require.Equal(t, StatusNoConnection, s.Status)
	require.True(t, s.Disconnected)
	require.True(t, s.CoolingDown(ActionRegions, clock.Now()))

	_, err = h.LoadRegions(context.Background(), s)
	require.ErrorIs(t, err, ErrCoolingDown)
	require.Equal(t, 1, extractor.calls)

	clock.Advance(500 * time.Millisecond)
	s, err = h.LoadRegions(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, StatusConnected, s.Status)
	require.False(t, s.Disconnected)
	require.Equal(t, 2, extractor.calls)
}

func TestCanSearch(t *testing.T) {
	h, _ := newTestHandler(&fakeExtractor{})
	s := New(false)
	s.LastQuery = "great"

	tests := []struct {
		query string
		want  bool
	}{
		{query: "", want: false},
		{query: "   ", want: false},
		{query: "great", want: false},
		{query: "great game", want: true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, h.CanSearch(s, tt.query), "query %q", tt.query)
	}
}

func TestSearchAppendsRows(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame()}}
	h, _ := newTestHandler(extractor)
	s := loaded(t, h, false)

	before := s
	s, err := h.Search(context.Background(), s, "gb", "great")
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.test/gb-store/search"}, extractor.searchURLs)
	require.Equal(t, StatusFound(1), s.Status)
	require.Equal(t, "Found 1 games!", s.Status)
	require.Equal(t, "United Kingdom GB | £", s.Region)
	require.Equal(t, "great", s.LastQuery)
	require.True(t, s.CanAdd)
	require.Len(t, s.Displayed, 1)
	require.Empty(t, before.Displayed)

	s, err = h.Search(context.Background(), s, "", "great game")
	require.NoError(t, err)
	require.Len(t, s.Displayed, 2)
	require.Equal(t, "http://example.test/gb-store/search", extractor.searchURLs[1])
}

func TestSearchClearOnSearch(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame()}}
	h, _ := newTestHandler(extractor)
	s := loaded(t, h, true)

	s, err := h.Search(context.Background(), s, "", "great")
	require.NoError(t, err)
	s, err = h.Select(s, 0)
	require.NoError(t, err)

	s, err = h.Search(context.Background(), s, "", "game")
	require.NoError(t, err)
	require.Len(t, s.Displayed, 1)
	require.Equal(t, NoSelection, s.Selected)
}

func TestSearchNoGames(t *testing.T) {
	h, _ := newTestHandler(&fakeExtractor{regions: testRegions(), rows: models.ResultSet{}})
	s := loaded(t, h, false)

	s, err := h.Search(context.Background(), s, "", "nothing")
	require.NoError(t, err)
	require.Equal(t, StatusNoGames, s.Status)
	require.Empty(t, s.Displayed)
	require.False(t, s.CanAdd)
}

func TestSearchConnectivityFailure(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame()}}
	h, clock := newTestHandler(extractor)
	s := loaded(t, h, false)
	extractor.errs = []error{errRefused}

	s, err := h.Search(context.Background(), s, "", "great")
	require.ErrorIs(t, err, scraper.ErrConnectivity)
	require.Equal(t, StatusNoConnection, s.Status)
	require.Empty(t, s.LastQuery)
	require.True(t, h.CanSearch(s, "great"))

	clock.Advance(399 * time.Millisecond)
	_, err = h.Search(context.Background(), s, "", "great")
	require.ErrorIs(t, err, ErrCoolingDown)

	clock.Advance(time.Millisecond)
	s, err = h.Search(context.Background(), s, "", "great")
	require.NoError(t, err)
	require.Len(t, s.Displayed, 1)
}

func TestSearchRejected(t *testing.T) {
	h, _ := newTestHandler(&fakeExtractor{regions: testRegions()})
	s := loaded(t, h, false)

	_, err := h.Search(context.Background(), s, "", "")
	require.ErrorIs(t, err, ErrSearchDisabled)

	_, err = h.Search(context.Background(), s, "jp", "great")
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestLowestPrice(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame()}, price: "$9.99"}
	h, _ := newTestHandler(extractor)
	s := loaded(t, h, false)

	_, err := h.LowestPrice(context.Background(), s)
	require.ErrorIs(t, err, ErrNoSelection)

	s, err = h.Search(context.Background(), s, "", "great")
	require.NoError(t, err)
	_, err = h.Select(s, 3)
	require.ErrorIs(t, err, ErrNoSelection)
	s, err = h.Select(s, 0)
	require.NoError(t, err)

	s, err = h.LowestPrice(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, models.LowestPrice{Title: "Great Game", Value: "$9.99"}, s.Lowest)
	require.Equal(t, "Great Game: $9.99", s.Lowest.String())
	require.Equal(t, []string{"http://example.test/game/great-game"}, extractor.detailURLs)

	s, err = h.LowestPrice(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, extractor.detailURLs, 1)
}

func TestLowestPriceConnectivityFailure(t *testing.T) {
	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame()}, price: "$9.99"}
	h, clock := newTestHandler(extractor)
	s := loaded(t, h, false)
	s, err := h.Search(context.Background(), s, "", "great")
	require.NoError(t, err)
	s, err = h.Select(s, 0)
	require.NoError(t, err)

	extractor.errs = []error{errRefused}
	s, err = h.LowestPrice(context.Background(), s)
	require.ErrorIs(t, err, scraper.ErrConnectivity)
	require.Equal(t, StatusNoConnection, s.Status)
	require.Empty(t, s.Lowest.Title)

	_, err = h.LowestPrice(context.Background(), s)
	require.ErrorIs(t, err, ErrCoolingDown)

	clock.Advance(500 * time.Millisecond)
	s, err = h.LowestPrice(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, "$9.99", s.Lowest.Value)
}

func TestAddAndExport(t *testing.T) {
	other := greatGame()
	other.Title = "Other Game"
	other.DetailLink = "/game/other-game"

	extractor := &fakeExtractor{regions: testRegions(), rows: models.ResultSet{greatGame(), other}}
	h, _ := newTestHandler(extractor)
	s := loaded(t, h, false)

	_, err := h.AddToExport(s)
	require.ErrorIs(t, err, ErrNothingToAdd)

	s, err = h.Search(context.Background(), s, "", "game")
	require.NoError(t, err)
	s, err = h.AddToExport(s)
	require.NoError(t, err)
	require.Equal(t, StatusAdded, s.Status)
	require.Len(t, s.ExportRows, 2)
	require.False(t, s.CanAdd)

	_, err = h.AddToExport(s)
	require.ErrorIs(t, err, ErrNothingToAdd)

	path := filepath.Join(t.TempDir(), "games.csv")
	writer, err := pipeline.NewCSVWriter(path)
	require.NoError(t, err)

	s, err = h.Export(s, writer)
	require.NoError(t, err)
	require.Equal(t, StatusExported, s.Status)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Game", "Price", "Discount", "Discounted Price"},
		{"Great Game", "$59.99", "0", "$39.99"},
		{"Other Game", "$59.99", "0", "$39.99"},
	}, records)
}

func TestExportEmpty(t *testing.T) {
	h, _ := newTestHandler(&fakeExtractor{})
	_, err := h.Export(New(false), nil)
	require.ErrorIs(t, err, ErrNothingToExport)
}

func TestHandlerWithScraper(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	s, err := scraper.NewScraper(cfg)
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	s.SetTransport(transport)
	transport.RegisterResponder("GET", "http://example.test/us-store",
		httpmock.NewStringResponder(200, `<div id="dropdown-region-menu"><span>United States | us</span></div>`))
	transport.RegisterResponder("GET", "http://example.test/us-store/search",
		httpmock.NewStringResponder(200, `<div class="game-collection-item"><a href="/game/great-game"></a>`+
			`<span class="game-collection-item-details-title">Great Game</span>`+
			`<span class="game-collection-item-price">$59.99</span>`+
			`<span class="game-collection-item-price-discount">$39.99</span></div>`))
	transport.RegisterResponder("GET", "http://example.test/game/great-game",
		httpmock.NewStringResponder(200, `<span class="game-stats-col-number-big game-stats-col-number-green">$9.99</span>`))

	h := NewHandler(s, cfg)
	sess, err := h.LoadRegions(context.Background(), New(false))
	require.NoError(t, err)
	sess, err = h.Search(context.Background(), sess, "us", "great game")
	require.NoError(t, err)
	require.Equal(t, models.ResultSet{greatGame()}, sess.Displayed)
	sess, err = h.Select(sess, 0)
	require.NoError(t, err)
	sess, err = h.LowestPrice(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "Great Game: $9.99", sess.Lowest.String())
}
