package layout

import (
	"fmt"
	"sort"
)

// Model is a validated layout, partitioned for O(1) lookup: directives that
// paint rows grouped by row index, button bindings indexed by button number,
// and the distinct set of entity ids the layout observes.
type Model struct {
	rows    int
	byRow   [][]Directive
	buttons [ButtonCount]*Button
	entity  []string
}

// NewModel validates directives against a surface with the given row count
// and partitions them. Validation stops at the first offending directive and
// reports its position.
func NewModel(directives List, rows int) (*Model, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("layout: invalid row count %d", rows)
	}
	m := &Model{
		rows:  rows,
		byRow: make([][]Directive, rows),
	}
	seen := make(map[string]struct{})
	for i, d := range directives {
		switch v := d.(type) {
		case Text:
			if v.Line < 0 || v.Line >= rows {
				return nil, fmt.Errorf("directive %d: %w: line %d, display has %d rows", i, ErrLineOutOfRange, v.Line, rows)
			}
			m.byRow[v.Line] = append(m.byRow[v.Line], v)
		case Line:
			if v.Line < 0 || v.Line >= rows {
				return nil, fmt.Errorf("directive %d: %w: line %d, display has %d rows", i, ErrLineOutOfRange, v.Line, rows)
			}
			if v.HAID == "" {
				return nil, fmt.Errorf("directive %d: %w", i, ErrMissingEntity)
			}
			m.byRow[v.Line] = append(m.byRow[v.Line], v)
			seen[v.HAID] = struct{}{}
		case Button:
			if v.Button < 0 || v.Button >= ButtonCount {
				return nil, fmt.Errorf("directive %d: %w: button %d", i, ErrButtonOutOfRange, v.Button)
			}
			if m.buttons[v.Button] != nil {
				return nil, fmt.Errorf("directive %d: %w: button %d", i, ErrDuplicateButton, v.Button)
			}
			if v.HAID == "" {
				return nil, fmt.Errorf("directive %d: %w", i, ErrMissingEntity)
			}
			if v.Cmp == nil || v.ActionOn == nil || v.ActionOff == nil {
				return nil, fmt.Errorf("directive %d: %w: incomplete button binding", i, ErrMalformedDirective)
			}
			b := v
			m.buttons[v.Button] = &b
			seen[v.HAID] = struct{}{}
		default:
			return nil, fmt.Errorf("directive %d: %w: %T", i, ErrUnknownVariant, d)
		}
	}
	m.entity = make([]string, 0, len(seen))
	for id := range seen {
		m.entity = append(m.entity, id)
	}
	sort.Strings(m.entity)
	return m, nil
}

// Rows returns the display row count the model was validated against.
func (m *Model) Rows() int { return m.rows }

// Row returns the directives that paint the given row, in file order.
func (m *Model) Row(row int) []Directive {
	if row < 0 || row >= m.rows {
		return nil
	}
	return m.byRow[row]
}

// Button returns the binding for a physical button, or nil when the button
// is unbound.
func (m *Model) Button(n int) *Button {
	if n < 0 || n >= ButtonCount {
		return nil
	}
	return m.buttons[n]
}

// EntityIDs returns the distinct entity ids the layout observes, sorted.
func (m *Model) EntityIDs() []string { return m.entity }

// TextOnly returns a reduced model carrying only the static Text directives.
// The engine falls back to it when live synchronization cannot run, so the
// panel still shows its static labels.
func (m *Model) TextOnly() *Model {
	out := &Model{
		rows:  m.rows,
		byRow: make([][]Directive, m.rows),
	}
	for row, ds := range m.byRow {
		for _, d := range ds {
			if t, ok := d.(Text); ok {
				out.byRow[row] = append(out.byRow[row], t)
			}
		}
	}
	return out
}
