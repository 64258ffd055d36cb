package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/panelsync/internal/layout"
)

// buttonCellWidth is the fixed width of one button label cell.
const buttonCellWidth = 20

// TerminalSurface renders the panel onto an ANSI terminal. It stands in
// for the panel hardware during development and on kiosk consoles: rows
// map to terminal lines and the three button labels share the line below
// the last row.
type TerminalSurface struct {
	mu   sync.Mutex
	w    io.Writer
	rows int
}

// NewTerminalSurface creates a surface with the given row count and clears
// the target terminal.
func NewTerminalSurface(w io.Writer, rows int) *TerminalSurface {
	s := &TerminalSurface{w: w, rows: rows}
	fmt.Fprint(w, "\x1b[2J\x1b[H")
	return s
}

// DrawRow implements Surface.
func (s *TerminalSurface) DrawRow(row int, text string, color layout.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, g, b := rgb565(color)
	_, err := fmt.Fprintf(s.w, "\x1b[%d;1H\x1b[2K\x1b[38;2;%d;%d;%dm%s\x1b[0m",
		row+1, r, g, b, text)
	return err
}

// DrawButton implements Surface. Labels sit one line below the rows.
func (s *TerminalSurface) DrawButton(button int, text string, color layout.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := []rune(text); len(r) > buttonCellWidth-2 {
		text = string(r[:buttonCellWidth-2])
	}
	r, g, b := rgb565(color)
	col := button*buttonCellWidth + 1
	_, err := fmt.Fprintf(s.w, "\x1b[%d;%dH\x1b[38;2;%d;%d;%dm[%-*s]\x1b[0m",
		s.rows+2, col, r, g, b, buttonCellWidth-2, text)
	return err
}

// ClearRow implements Surface.
func (s *TerminalSurface) ClearRow(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "\x1b[%d;1H\x1b[2K", row+1)
	return err
}

// rgb565 expands a packed 16-bit colour to 8-bit channels.
func rgb565(c layout.Color) (r, g, b uint8) {
	r = uint8((c >> 11 & 0x1F) << 3)
	g = uint8((c >> 5 & 0x3F) << 2)
	b = uint8((c & 0x1F) << 3)
	return r, g, b
}
