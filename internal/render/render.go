// Package render draws the collection for a terminal.  Column widths are
// measured in cells, so wide runes and emoji line up.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/view"
)

// MaxColumnWidth caps a column; longer values are truncated with an
// ellipsis.
const MaxColumnWidth = 36

const columnGap = "  "

var headers = []string{"ID", "NAME", "EMAIL", "SKILLS", "REGISTERED"}

// State renders the current page of s, or its error when the last fetch
// failed.
func State(w io.Writer, s collection.State) error {
	if s.Error != "" {
		_, err := fmt.Fprintf(w, "error: %s\n", s.Error)
		return err
	}
	if s.Loading {
		_, err := fmt.Fprintln(w, "loading...")
		return err
	}

	var b strings.Builder
	b.WriteString(Table(view.Of(s)))
	if s.SortField != "" {
		fmt.Fprintf(&b, "sorted by %s (%s)\n", s.SortField, s.SortOrder)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Table renders one page: the user rows, a "showing" footer and, when
// there is more than one page, the page strip.
func Table(p view.Page) string {
	var b strings.Builder

	if p.Total == 0 {
		b.WriteString("no users\n")
		return b.String()
	}

	rows := make([][]string, 0, len(p.Users)+1)
	rows = append(rows, headers)
	for _, u := range p.Users {
		rows = append(rows, Row(u))
	}
	writeRows(&b, rows)

	if len(p.Users) == 0 {
		fmt.Fprintf(&b, "page %d is empty, %d users in total\n", p.CurrentPage, p.Total)
	} else {
		fmt.Fprintf(&b, "showing %d–%d of %d\n", p.From, p.To, p.Total)
	}
	if p.ControlsActive() {
		b.WriteString(PageStrip(p))
		b.WriteString("\n")
	}
	return b.String()
}

// Row formats the cells of one user.
func Row(u user.User) []string {
	return []string{
		u.ID,
		u.FullName(),
		u.Email,
		strings.Join(u.Skills, ", "),
		u.RegistrationDate.UTC().Format(time.DateOnly),
	}
}

// PageStrip renders the page selector, e.g. "< 1 [2] 3 >".  The arrows are
// only drawn when there is a page in that direction.
func PageStrip(p view.Page) string {
	parts := make([]string, 0, p.TotalPages+2)
	if p.HasPrev() {
		parts = append(parts, "<")
	}
	for _, n := range p.Pages() {
		if n == p.CurrentPage {
			parts = append(parts, "["+strconv.Itoa(n)+"]")
			continue
		}
		parts = append(parts, strconv.Itoa(n))
	}
	if p.HasNext() {
		parts = append(parts, ">")
	}
	return strings.Join(parts, " ")
}

func writeRows(b *strings.Builder, rows [][]string) {
	widths := make([]int, len(headers))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], min(runewidth.StringWidth(cell), MaxColumnWidth))
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cell = runewidth.Truncate(cell, MaxColumnWidth, "…")
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
		b.WriteString(strings.Join(cells, columnGap))
		b.WriteString("\n")
	}
}
