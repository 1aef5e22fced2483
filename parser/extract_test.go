package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

func mustDoc(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc.Selection
}

func TestLocaleCode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "code after marker", input: "United States | us", expected: "us"},
		{name: "upper code after marker", input: "United Kingdom | GB", expected: "gb"},
		{name: "code before marker", input: "Germany DE | €", expected: "de"},
		{name: "currency after marker", input: "Brazil BR | R$", expected: "br"},
		{name: "no marker", input: "Japan JP", expected: "jp"},
		{name: "short label", input: "X", expected: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocaleCode(tt.input, " |"); got != tt.expected {
				t.Fatalf("LocaleCode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractRegions(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div id="dropdown-region-menu">
  <a><span>United States | us</span></a>
  <a><span>Germany DE | €</span></a>
  <a><span>United Kingdom GB | £</span></a>
</div>
<span>Not a region</span>
</body></html>`)

	regions := ExtractRegions(doc, DefaultLayout())

	got := regions.Regions()
	want := []models.Region{
		{DisplayName: "United States | us", LocaleCode: "us"},
		{DisplayName: "Germany DE | €", LocaleCode: "de"},
		{DisplayName: "United Kingdom GB | £", LocaleCode: "gb"},
	}
	if len(got) != len(want) {
		t.Fatalf("regions=%d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("region[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	for _, r := range got {
		if len(r.LocaleCode) != 2 || strings.ToLower(r.LocaleCode) != r.LocaleCode {
			t.Fatalf("locale code %q is not a lower-case pair", r.LocaleCode)
		}
	}
}

func TestExtractResultsFieldPolicies(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="game-collection-item">
  <a href="/game/great-game"><img></a>
  <span class="game-collection-item-details-title">Great Game</span>
  <span class="game-collection-item-price">$59.99</span>
  <span class="game-collection-item-price-discount">$39.99</span>
</div>
<div class="game-collection-item">
  <a href="/game/sale"></a>
  <span class="game-collection-item-details-title">
     Sale
     Game
  </span>
  <span class="game-collection-item-discount">-50%</span>
  <span class="game-collection-item-price strikethrough">$20.00</span>
  <span class="game-collection-item-price-discount">$10.00</span>
</div>
<div class="game-collection-item">
  <a href="/game/free"></a>
  <span class="game-collection-item-details-title">Free Game</span>
</div>
</body></html>`)

	rows, err := ExtractResults(doc, DefaultLayout())
	if err != nil {
		t.Fatalf("ExtractResults: %v", err)
	}

	want := models.ResultSet{
		{Title: "Great Game", Price: "$59.99", Discount: "0", DiscountedPrice: "$39.99", DetailLink: "/game/great-game"},
		{Title: "Sale Game", Price: "$20.00", Discount: "-50%", DiscountedPrice: "$10.00", DetailLink: "/game/sale"},
		{Title: "Free Game", Price: "0", Discount: "0", DiscountedPrice: "0", DetailLink: "/game/free"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows=%d, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestExtractResultsDiscountedPriceFallsBackToPrice(t *testing.T) {
	doc := mustDoc(t, `<div class="game-collection-item">
  <a href="/game/full-price"></a>
  <span class="game-collection-item-details-title">Full Price</span>
  <span class="game-collection-item-price">$69.99</span>
</div>`)

	rows, err := ExtractResults(doc, DefaultLayout())
	if err != nil {
		t.Fatalf("ExtractResults: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if rows[0].DiscountedPrice != "$69.99" || rows[0].Price != "$69.99" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestExtractResultsEmpty(t *testing.T) {
	rows, err := ExtractResults(mustDoc(t, `<html><body><p>Nothing here</p></body></html>`), DefaultLayout())
	if err != nil {
		t.Fatalf("ExtractResults: %v", err)
	}
	if rows == nil || !rows.Empty() {
		t.Fatalf("expected empty non-nil result set, got %#v", rows)
	}
}

func TestExtractResultsMissingTitle(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="game-collection-item"><a href="/a"></a><span class="game-collection-item-details-title">A</span></div>
<div class="game-collection-item"><a href="/b"></a><span class="game-collection-item-price">$1</span></div>
</body></html>`)

	rows, err := ExtractResults(doc, DefaultLayout())
	if err == nil {
		t.Fatalf("expected extraction error, got rows %v", rows)
	}
	if rows != nil {
		t.Fatalf("expected no partial rows, got %v", rows)
	}
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("error %v should match ErrExtraction", err)
	}
	var extractionErr ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("error %v should be an ExtractionError", err)
	}
	if extractionErr.Field != FieldTitle || extractionErr.Index != 1 {
		t.Fatalf("extraction error = %+v", extractionErr)
	}
}

func TestSelectValue(t *testing.T) {
	item := mustDoc(t, `<div><b class="alt">alt</b></div>`)

	tests := []struct {
		name     string
		primary  string
		fallback string
		expected string
	}{
		{name: "fallback used", primary: ".main", fallback: ".alt", expected: "alt"},
		{name: "primary wins", primary: ".alt", fallback: ".main", expected: "alt"},
		{name: "no fallback", primary: ".main", expected: "0"},
		{name: "nothing matches", primary: ".main", fallback: ".other", expected: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectValue(item, tt.primary, tt.fallback); got != tt.expected {
				t.Fatalf("SelectValue(%q, %q) = %q, want %q", tt.primary, tt.fallback, got, tt.expected)
			}
		})
	}
}

func TestExtractLowestPrice(t *testing.T) {
	doc := mustDoc(t, `<div class="game-stats">
<div class="game-stats-col-number-big">$19.99</div>
<div class="game-stats-col-number-big game-stats-col-number-green">$9.99</div>
</div>`)

	price, err := ExtractLowestPrice(doc, DefaultLayout())
	if err != nil {
		t.Fatalf("ExtractLowestPrice: %v", err)
	}
	if price != "$9.99" {
		t.Fatalf("price = %q, want $9.99", price)
	}

	_, err = ExtractLowestPrice(mustDoc(t, `<div class="game-stats-col-number-big">$19.99</div>`), DefaultLayout())
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestLayoutPolicy(t *testing.T) {
	layout := DefaultLayout()

	title, ok := layout.Policy(FieldTitle)
	if !ok || !title.Mandatory {
		t.Fatalf("title policy should be mandatory: %+v", title)
	}
	for _, field := range []string{FieldDiscount, FieldPrice, FieldDiscountedPrice} {
		policy, ok := layout.Policy(field)
		if !ok {
			t.Fatalf("missing policy for %s", field)
		}
		if policy.Mandatory || policy.Default != DefaultValue {
			t.Fatalf("%s should be optional with default %q: %+v", field, DefaultValue, policy)
		}
	}
	if _, ok := layout.Policy("unknown"); ok {
		t.Fatalf("unexpected policy for unknown field")
	}
}
