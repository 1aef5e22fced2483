// Package models defines data structures for the scraper.
package models

// Region is one entry of the store's region menu.
type Region struct {
	DisplayName string `csv:"region" json:"region"`
	LocaleCode  string `csv:"locale" json:"locale"`
}

// RegionDirectory maps region display names to locale codes, keeping the
// order in which the landing page listed them.
type RegionDirectory struct {
	order []string
	codes map[string]string
}

// NewRegionDirectory returns an empty directory.
func NewRegionDirectory() *RegionDirectory {
	return &RegionDirectory{codes: make(map[string]string)}
}

// Add records a region. A repeated display name keeps its first position
// and takes the latest locale code.
func (d *RegionDirectory) Add(displayName, localeCode string) {
	if d.codes == nil {
		d.codes = make(map[string]string)
	}
	if _, ok := d.codes[displayName]; !ok {
		d.order = append(d.order, displayName)
	}
	d.codes[displayName] = localeCode
}

// Code returns the locale code registered for a display name.
func (d *RegionDirectory) Code(displayName string) (string, bool) {
	if d == nil {
		return "", false
	}
	code, ok := d.codes[displayName]
	return code, ok
}

// Len reports the number of regions.
func (d *RegionDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// Regions returns the regions in document order.
func (d *RegionDirectory) Regions() []Region {
	if d == nil {
		return nil
	}
	out := make([]Region, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, Region{DisplayName: name, LocaleCode: d.codes[name]})
	}
	return out
}

// Map returns a copy of the display name to locale code mapping.
func (d *RegionDirectory) Map() map[string]string {
	out := make(map[string]string, d.Len())
	if d == nil {
		return out
	}
	for k, v := range d.codes {
		out[k] = v
	}
	return out
}

// SearchResultRow is one game listed on a search results page. Prices and
// discounts keep the store's formatting.
type SearchResultRow struct {
	Title           string `csv:"Game" json:"title"`
	Price           string `csv:"Price" json:"price"`
	Discount        string `csv:"Discount" json:"discount"`
	DiscountedPrice string `csv:"Discounted Price" json:"discounted_price"`
	DetailLink      string `csv:"Link" json:"link"`
}

// ResultSet holds the rows of one search call in page order.
type ResultSet []SearchResultRow

// Empty reports whether the search found nothing.
func (rs ResultSet) Empty() bool {
	return len(rs) == 0
}

// Titles lists the row titles in order.
func (rs ResultSet) Titles() []string {
	out := make([]string, len(rs))
	for i, row := range rs {
		out[i] = row.Title
	}
	return out
}

// LowestPrice is the lowest recorded price shown on a game's detail page.
type LowestPrice struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// String formats the price the way the session shows it.
func (lp LowestPrice) String() string {
	return lp.Title + ": " + lp.Value
}
