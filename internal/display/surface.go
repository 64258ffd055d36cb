package display

import "github.com/nerrad567/panelsync/internal/layout"

// Surface is an addressable text display with a fixed number of rows and
// one label cell per physical button. Implementations wrap the actual
// panel hardware; they are exercised only from the renderer goroutine.
type Surface interface {
	// DrawRow replaces the content of one row.
	DrawRow(row int, text string, color layout.Color) error

	// DrawButton replaces the label of one button cell.
	DrawButton(button int, text string, color layout.Color) error

	// ClearRow blanks one row.
	ClearRow(row int) error
}
