package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-psdeals/config"
	"github.com/aluiziolira/go-scrape-psdeals/models"
	"github.com/aluiziolira/go-scrape-psdeals/pipeline"
	"github.com/aluiziolira/go-scrape-psdeals/scraper"
)

var (
	// ErrCoolingDown is returned when an action is retried before its
	// cooldown expired.
	ErrCoolingDown = errors.New("action is cooling down")
	// ErrSearchDisabled is returned for an empty or repeated query.
	ErrSearchDisabled = errors.New("search is disabled for this query")
	// ErrUnknownRegion is returned when a region is not in the directory.
	ErrUnknownRegion = errors.New("unknown region")
	// ErrNoSelection is returned when no displayed row is selected.
	ErrNoSelection = errors.New("no row selected")
	// ErrNothingToAdd is returned when there are no new rows to add.
	ErrNothingToAdd = errors.New("no new rows to add")
	// ErrNothingToExport is returned when the export buffer is empty.
	ErrNothingToExport = errors.New("no rows to export")
)

// Extractor fetches and extracts psdeals pages.
type Extractor interface {
	FetchRegions(ctx context.Context) (*models.RegionDirectory, error)
	Search(ctx context.Context, searchURL, query string) (models.ResultSet, error)
	FetchLowestPrice(ctx context.Context, detailURL string) (string, error)
}

// Handler applies user actions to a session.
type Handler struct {
	extractor Extractor
	cfg       *config.Config
	now       func() time.Time
}

// NewHandler returns a handler using extractor for all network calls.
func NewHandler(extractor Extractor, cfg *config.Config) *Handler {
	return &Handler{
		extractor: extractor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for cooldowns.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// LoadRegions fills the region directory. The first region becomes the
// current one when none is set.
func (h *Handler) LoadRegions(ctx context.Context, s Session) (Session, error) {
	if err := h.ready(s, ActionRegions); err != nil {
		return s, err
	}

	regions, err := h.extractor.FetchRegions(ctx)
	if err != nil {
		return h.failed(s, ActionRegions, h.cfg.RetryCooldown, err)
	}

	if s.Disconnected {
		s.Disconnected = false
		s.Status = StatusConnected
	}
	s.Regions = regions
	if _, _, ok := s.ResolveRegion(s.Region); !ok {
		s.Region = ""
		if list := regions.Regions(); len(list) > 0 {
			s.Region = list[0].DisplayName
		}
	}
	slog.Info("regions loaded", slog.Int("regions", regions.Len()))
	return s, nil
}

// CanSearch reports whether query may be submitted: it must be non-empty and
// differ from the last submitted query.
func (h *Handler) CanSearch(s Session, query string) bool {
	return strings.TrimSpace(query) != "" && query != s.LastQuery
}

// Search runs query in region, given by display name or locale code. An empty
// region means the current one.
func (h *Handler) Search(ctx context.Context, s Session, region, query string) (Session, error) {
	if !h.CanSearch(s, query) {
		return s, ErrSearchDisabled
	}
	if err := h.ready(s, ActionSearch); err != nil {
		return s, err
	}
	if region == "" {
		region = s.Region
	}
	displayName, code, ok := s.ResolveRegion(region)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	s.Region = displayName
	s.LastQuery = query

	rows, err := h.extractor.Search(ctx, h.cfg.SearchURL(code), query)
	if err != nil {
		s.LastQuery = ""
		return h.failed(s, ActionSearch, h.cfg.SearchCooldown, err)
	}

	if rows.Empty() {
		s.Status = StatusNoGames
		return s, nil
	}

	if s.ClearOnSearch {
		s.Displayed = nil
		s.Selected = NoSelection
	}
	s.Displayed = appendRows(s.Displayed, rows)
	s.CanAdd = true
	s.Status = StatusFound(len(rows))
	slog.Info("search finished",
		slog.String("region", code),
		slog.String("query", query),
		slog.Int("rows", len(rows)),
	)
	return s, nil
}

// Select marks a displayed row as selected.
func (h *Handler) Select(s Session, index int) (Session, error) {
	if index < 0 || index >= len(s.Displayed) {
		return s, fmt.Errorf("%w: index %d of %d rows", ErrNoSelection, index, len(s.Displayed))
	}
	s.Selected = index
	return s, nil
}

// LowestPrice fetches the lowest recorded price of the selected row. The
// fetch is skipped when the row's title is the one last looked up.
func (h *Handler) LowestPrice(ctx context.Context, s Session) (Session, error) {
	row, ok := s.SelectedRow()
	if !ok {
		return s, ErrNoSelection
	}
	if s.Lowest.Title != "" && row.Title == s.Lowest.Title {
		return s, nil
	}
	if err := h.ready(s, ActionLowestPrice); err != nil {
		return s, err
	}

	detailURL, err := h.cfg.DetailURL(row.DetailLink)
	if err != nil {
		return s, err
	}

	price, err := h.extractor.FetchLowestPrice(ctx, detailURL)
	if err != nil {
		return h.failed(s, ActionLowestPrice, h.cfg.RetryCooldown, err)
	}
	s.Lowest = models.LowestPrice{Title: row.Title, Value: price}
	return s, nil
}

// AddToExport appends the displayed rows to the export buffer.
func (h *Handler) AddToExport(s Session) (Session, error) {
	if !s.CanAdd || len(s.Displayed) == 0 {
		return s, ErrNothingToAdd
	}
	s.ExportRows = appendRows(s.ExportRows, s.Displayed)
	s.CanAdd = false
	s.Status = StatusAdded
	return s, nil
}

// Export writes the export buffer through writer and closes it.
func (h *Handler) Export(s Session, writer pipeline.OutputWriter) (Session, error) {
	if len(s.ExportRows) == 0 {
		return s, ErrNothingToExport
	}

	exporter, err := pipeline.NewExporter(writer, h.cfg)
	if err != nil {
		return s, err
	}
	if err := exporter.Export(s.ExportRows); err != nil {
		exporter.Close()
		return s, fmt.Errorf("export rows: %w", err)
	}
	if err := exporter.Close(); err != nil {
		return s, fmt.Errorf("close export: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return s, fmt.Errorf("validate export: %w", err)
	}

	s.Status = StatusExported
	return s, nil
}

func (h *Handler) ready(s Session, action string) error {
	if s.CoolingDown(action, h.now()) {
		return fmt.Errorf("%s: %w", action, ErrCoolingDown)
	}
	return nil
}

// failed records a fetch error. Connectivity failures set the no-connection
// status and disable action for cooldown.
func (h *Handler) failed(s Session, action string, cooldown time.Duration, err error) (Session, error) {
	if !errors.Is(err, scraper.ErrConnectivity) {
		slog.Error("action failed", slog.String("action", action), slog.Any("error", err))
		return s, err
	}

	slog.Warn("source unreachable",
		slog.String("action", action),
		slog.Duration("cooldown", cooldown),
		slog.Any("error", err),
	)
	s.Status = StatusNoConnection
	if action == ActionRegions {
		s.Disconnected = true
	}
	return s.withCooldown(action, h.now().Add(cooldown)), err
}
