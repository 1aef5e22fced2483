package main

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderRegions(w io.Writer, regions *models.RegionDirectory) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Region", "Locale"})
	for _, region := range regions.Regions() {
		t.AppendRow(table.Row{region.DisplayName, region.LocaleCode})
	}
	t.Render()
}

// renderRows prints rows numbered from 1; the selected row is marked.
func renderRows(w io.Writer, rows models.ResultSet, selected int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Game", "Price", "Discount", "Discounted Price"})
	for i, row := range rows {
		number := strconv.Itoa(i + 1)
		if i == selected {
			number = "*" + number
		}
		t.AppendRow(table.Row{number, row.Title, row.Price, row.Discount, row.DiscountedPrice})
	}
	t.Render()
}
