// Package session holds the state of an interactive price search and the
// handlers that move it forward. Handlers take a Session and return the
// updated one; they never keep state of their own.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

// Status messages shown to the user.
const (
	StatusNoConnection = "Could not connect to source. Please try again."
	StatusConnected    = "Connection established."
	StatusNoGames      = "No games were found!"
	StatusAdded        = "The current games were added to CSV data."
	StatusExported     = "CSV file created!"
)

// StatusFound is the message for a search that returned n rows.
func StatusFound(n int) string {
	return fmt.Sprintf("Found %d games!", n)
}

// Actions gated by a cooldown after a connectivity failure.
const (
	ActionRegions     = "regions"
	ActionSearch      = "search"
	ActionLowestPrice = "lowest_price"
)

// NoSelection is the Selected value when no row is selected.
const NoSelection = -1

// Session is the state of one interactive search.
type Session struct {
	Regions       *models.RegionDirectory
	Region        string // display name of the current region
	LastQuery     string
	Displayed     models.ResultSet
	ExportRows    models.ResultSet
	Selected      int
	Lowest        models.LowestPrice
	Status        string
	ClearOnSearch bool

	// Disconnected is set after a failed region load and cleared by the
	// next successful one.
	Disconnected bool
	// CanAdd is true while the displayed rows hold a search result that has
	// not been added to the export buffer yet.
	CanAdd bool

	cooldowns map[string]time.Time
}

// New returns an empty session.
func New(clearOnSearch bool) Session {
	return Session{
		Selected:      NoSelection,
		ClearOnSearch: clearOnSearch,
	}
}

// ResolveRegion finds a region by display name or locale code and returns
// both.
func (s Session) ResolveRegion(name string) (displayName, code string, ok bool) {
	if s.Regions == nil {
		return "", "", false
	}
	if code, ok := s.Regions.Code(name); ok {
		return name, code, true
	}
	for _, region := range s.Regions.Regions() {
		if strings.EqualFold(region.LocaleCode, name) {
			return region.DisplayName, region.LocaleCode, true
		}
	}
	return "", "", false
}

// SelectedRow returns the selected displayed row.
func (s Session) SelectedRow() (models.SearchResultRow, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Displayed) {
		return models.SearchResultRow{}, false
	}
	return s.Displayed[s.Selected], true
}

// CoolingDown reports whether action is disabled at now.
func (s Session) CoolingDown(action string, now time.Time) bool {
	until, ok := s.cooldowns[action]
	return ok && now.Before(until)
}

func (s Session) withCooldown(action string, until time.Time) Session {
	next := make(map[string]time.Time, len(s.cooldowns)+1)
	for k, v := range s.cooldowns {
		next[k] = v
	}
	next[action] = until
	s.cooldowns = next
	return s
}

func appendRows(dst, src models.ResultSet) models.ResultSet {
	out := make(models.ResultSet, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}
