package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one extracted HTML table.
type Table struct {
	Header []string
	Rows   [][]string
}

// carry is a cell still spanning down into later rows.
type carry struct {
	text string
	left int
}

type gridRow struct {
	cells  []string
	header bool
}

// ParseTables extracts every table carrying class from doc. A table that
// cannot be turned into a grid is reported in errs and skipped; the others
// are still returned.
func ParseTables(doc *goquery.Document, class string) (tables []Table, errs []error) {
	doc.Find("table." + class).Each(func(i int, t *goquery.Selection) {
		tbl, err := parseTable(t)
		if err != nil {
			errs = append(errs, fmt.Errorf("table %d: %w", i+1, err))
			return
		}
		tables = append(tables, tbl)
	})
	return tables, errs
}

func parseTable(t *goquery.Selection) (tbl Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedTable, r)
		}
	}()

	rows := t.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(t)
	})
	grid := expand(rows)
	if len(grid) == 0 {
		return Table{}, ErrMalformedTable
	}

	width := 0
	for _, r := range grid {
		width = max(width, len(r.cells))
	}
	if width == 0 {
		return Table{}, ErrMalformedTable
	}

	var headerRows [][]string
	i := 0
	for ; i < len(grid) && grid[i].header; i++ {
		headerRows = append(headerRows, pad(grid[i].cells, width))
	}
	tbl.Header = joinHeader(headerRows, width)

	for _, r := range grid[i:] {
		cells := pad(r.cells, width)
		if blank(cells) {
			continue
		}
		tbl.Rows = append(tbl.Rows, cells)
	}
	return tbl, nil
}

// expand lays the rows out on a grid, repeating colspan cells across and
// rowspan cells down.
func expand(rows *goquery.Selection) []gridRow {
	pending := map[int]*carry{}
	var out []gridRow

	rows.Each(func(_ int, tr *goquery.Selection) {
		var row gridRow
		col := 0
		fill := func() {
			for c, ok := pending[col]; ok && c.left > 0; c, ok = pending[col] {
				row.cells = append(row.cells, c.text)
				c.left--
				if c.left == 0 {
					delete(pending, col)
				}
				col++
			}
		}

		cells := tr.ChildrenFiltered("th,td")
		row.header = cells.Length() > 0 && cells.Length() == tr.ChildrenFiltered("th").Length()
		if tr.Parent().Is("thead") {
			row.header = true
		}

		cells.Each(func(_ int, cell *goquery.Selection) {
			fill()
			text := cellText(cell)
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for k := 0; k < colspan; k++ {
				row.cells = append(row.cells, text)
				if rowspan > 1 {
					pending[col] = &carry{text: text, left: rowspan - 1}
				}
				col++
			}
		})

		// trailing columns still covered by rowspans from above
		for last := lastPending(pending); col <= last; {
			if _, ok := pending[col]; ok {
				fill()
				continue
			}
			row.cells = append(row.cells, "")
			col++
		}
		out = append(out, row)
	})
	return out
}

func lastPending(p map[int]*carry) int {
	last := -1
	for c := range p {
		last = max(last, c)
	}
	return last
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, 1000)
}

func cellText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find("style,script").Remove()
	return strings.Join(strings.Fields(c.Text()), " ")
}

// joinHeader collapses stacked header rows into one label per column,
// skipping labels repeated by a colspan above.
func joinHeader(rows [][]string, width int) []string {
	header := make([]string, width)
	for c := 0; c < width; c++ {
		var parts []string
		for _, r := range rows {
			v := r[c]
			if v == "" || (len(parts) > 0 && parts[len(parts)-1] == v) {
				continue
			}
			parts = append(parts, v)
		}
		header[c] = strings.Join(parts, " ")
		if header[c] == "" {
			header[c] = strconv.Itoa(c)
		}
	}
	return header
}

func pad(cells []string, width int) []string {
	if len(cells) >= width {
		return cells[:width]
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
