package parser

// Field names used in the extraction policy table.
const (
	FieldTitle           = "title"
	FieldDiscount        = "discount"
	FieldPrice           = "price"
	FieldDiscountedPrice = "discounted_price"
)

// DefaultValue is what an optional field reads as when none of its
// selectors match.
const DefaultValue = "0"

// FieldPolicy describes how one result field is read from a result node.
// Mandatory fields have no default: their absence is an extraction error.
type FieldPolicy struct {
	Field     string
	Primary   string
	Fallback  string
	Default   string
	Mandatory bool
}

// Layout collects every selector that couples the scraper to the store's
// markup. A change on the site should only require editing a Layout.
type Layout struct {
	RegionItem   string
	LocaleMarker string
	ResultItem   string
	DetailAnchor string
	Fields       []FieldPolicy
	LowestPrice  string
}

// DefaultLayout matches psdeals.net.
func DefaultLayout() Layout {
	return Layout{
		RegionItem:   "#dropdown-region-menu span",
		LocaleMarker: " |",
		ResultItem:   ".game-collection-item",
		DetailAnchor: "a",
		Fields: []FieldPolicy{
			{
				Field:     FieldTitle,
				Primary:   ".game-collection-item-details-title",
				Mandatory: true,
			},
			{
				Field:   FieldDiscount,
				Primary: ".game-collection-item-discount",
				Default: DefaultValue,
			},
			{
				Field:    FieldPrice,
				Primary:  ".game-collection-item-price",
				Fallback: ".game-collection-item-price.strikethrough",
				Default:  DefaultValue,
			},
			{
				Field:    FieldDiscountedPrice,
				Primary:  ".game-collection-item-price-discount",
				Fallback: ".game-collection-item-price",
				Default:  DefaultValue,
			},
		},
		LowestPrice: ".game-stats-col-number-big.game-stats-col-number-green",
	}
}

// Policy returns the policy registered for a field.
func (l Layout) Policy(field string) (FieldPolicy, bool) {
	for _, p := range l.Fields {
		if p.Field == field {
			return p, true
		}
	}
	return FieldPolicy{}, false
}
