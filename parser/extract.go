package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

// SelectValue returns the text of the first node matching primary inside
// container, then of the first node matching fallback, then "0".
func SelectValue(container *goquery.Selection, primary, fallback string) string {
	value, ok := FieldPolicy{Primary: primary, Fallback: fallback}.Select(container)
	if !ok {
		return DefaultValue
	}
	return value
}

// Select applies the policy to a container node. The bool is false when no
// selector matched; the returned string is then the policy default.
func (p FieldPolicy) Select(container *goquery.Selection) (string, bool) {
	if node := container.Find(p.Primary).First(); node.Length() > 0 {
		return NormalizeText(node.Text()), true
	}
	if p.Fallback != "" {
		if node := container.Find(p.Fallback).First(); node.Length() > 0 {
			return NormalizeText(node.Text()), true
		}
	}
	return p.Default, false
}

// LocaleCode derives a region's locale code from its menu label. A bare
// two-letter code after marker ("United States | us") is used as is;
// otherwise the code is the last two characters before marker
// ("Germany DE | €"). Either way it is lower-cased. This only holds for the
// psdeals menu labels.
func LocaleCode(displayName, marker string) string {
	head, tail := displayName, ""
	if marker != "" {
		head, tail, _ = strings.Cut(displayName, marker)
	}
	if code := strings.TrimSpace(tail); isLetterPair(code) {
		return strings.ToLower(code)
	}
	if n := utf8.RuneCountInString(head); n > 2 {
		runes := []rune(head)
		head = string(runes[n-2:])
	}
	return strings.ToLower(head)
}

func isLetterPair(s string) bool {
	if utf8.RuneCountInString(s) != 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ExtractRegions reads the region menu of the landing page.
func ExtractRegions(doc *goquery.Selection, layout Layout) *models.RegionDirectory {
	regions := models.NewRegionDirectory()
	doc.Find(layout.RegionItem).Each(func(_ int, s *goquery.Selection) {
		name := NormalizeText(s.Text())
		regions.Add(name, LocaleCode(name, layout.LocaleMarker))
	})
	return regions
}

// ExtractResults reads every result node of a search page. It stops at the
// first node missing a mandatory field.
func ExtractResults(doc *goquery.Selection, layout Layout) (models.ResultSet, error) {
	items := doc.Find(layout.ResultItem)
	rows := make(models.ResultSet, 0, items.Length())

	var err error
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		var row models.SearchResultRow
		row, err = ExtractRow(item, i, layout)
		if err != nil {
			return false
		}
		rows = append(rows, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExtractRow reads a single result node using the layout's field policies.
func ExtractRow(item *goquery.Selection, index int, layout Layout) (models.SearchResultRow, error) {
	row := models.SearchResultRow{
		DetailLink: strings.TrimSpace(item.Find(layout.DetailAnchor).First().AttrOr("href", "")),
	}

	for _, policy := range layout.Fields {
		value, ok := policy.Select(item)
		if !ok && policy.Mandatory {
			return models.SearchResultRow{}, ExtractionError{
				Field:    policy.Field,
				Selector: policy.Primary,
				Index:    index,
			}
		}
		switch policy.Field {
		case FieldTitle:
			row.Title = value
		case FieldDiscount:
			row.Discount = value
		case FieldPrice:
			row.Price = value
		case FieldDiscountedPrice:
			row.DiscountedPrice = value
		}
	}
	return row, nil
}

// ExtractLowestPrice reads the highlighted lowest recorded price of a
// detail page.
func ExtractLowestPrice(doc *goquery.Selection, layout Layout) (string, error) {
	node := doc.Find(layout.LowestPrice).First()
	if node.Length() == 0 {
		return "", ExtractionError{
			Field:    "lowest_price",
			Selector: layout.LowestPrice,
			Index:    -1,
		}
	}
	return NormalizeText(node.Text()), nil
}
