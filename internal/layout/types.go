package layout

import "strconv"

// ButtonCount is the fixed number of physical buttons on the panel.
const ButtonCount = 3

// Color is a 16-bit packed RGB565 colour value as accepted by the display
// surface.
type Color uint16

// Common RGB565 colours.
const (
	ColorBlack   Color = 0x0000
	ColorBlue    Color = 0x001F
	ColorGreen   Color = 0x07E0
	ColorCyan    Color = 0x07FF
	ColorRed     Color = 0xF800
	ColorMagenta Color = 0xF81F
	ColorYellow  Color = 0xFFE3
	ColorWhite   Color = 0xFFFF
)

// Directive is one configured binding between a display row or a physical
// button and, optionally, a Home Assistant entity.
//
// It is a closed sum: the only implementations are Text, Line and Button.
// Code dispatching on directives switches over those three types; the
// compiler keeps the set closed.
type Directive interface {
	// EntityID returns the bound entity id, or "" for directives that do
	// not reference an entity.
	EntityID() string

	isDirective()
}

// Text is a static label on a display row.
type Text struct {
	Line  int
	Text  string
	Color Color
}

// Line is a label prefix followed by a live entity value on a display row.
type Line struct {
	Line    int
	HAID    string
	Text    string
	MakeInt bool
	Color   Color
}

// Button binds a physical button to a comparison-driven label and a pair of
// remote actions. The label shows TextOn while the entity value matches Cmp
// and TextOff otherwise; a press dispatches the action that flips the
// displayed state.
type Button struct {
	Button    int
	HAID      string
	Cmp       CmpValue
	TextOn    string
	TextOff   string
	ActionOn  Action
	ActionOff Action
	Color     Color
}

func (Text) isDirective()   {}
func (Line) isDirective()   {}
func (Button) isDirective() {}

// EntityID implements Directive. Text never references an entity.
func (Text) EntityID() string { return "" }

// EntityID implements Directive.
func (l Line) EntityID() string { return l.HAID }

// EntityID implements Directive.
func (b Button) EntityID() string { return b.HAID }

// CmpValue is a comparison operand for Button directives. It is a closed
// sum of CmpStr, CmpInt and CmpFloat, each with its own match semantics
// against the raw entity value string.
type CmpValue interface {
	// Matches reports whether the raw entity value compares equal under
	// this variant's semantics.
	Matches(raw string) bool

	isCmpValue()
}

// CmpStr matches by exact string equality.
type CmpStr string

// CmpInt matches when the raw value parses as an integer equal to it.
// A raw value that does not parse never matches.
type CmpInt int64

// CmpFloat matches when the raw value parses as a real number exactly equal
// to it. A raw value that does not parse never matches.
type CmpFloat float64

func (CmpStr) isCmpValue()   {}
func (CmpInt) isCmpValue()   {}
func (CmpFloat) isCmpValue() {}

// Matches implements CmpValue.
func (c CmpStr) Matches(raw string) bool { return string(c) == raw }

// Matches implements CmpValue.
func (c CmpInt) Matches(raw string) bool {
	v, err := strconv.ParseInt(raw, 10, 64)
	return err == nil && v == int64(c)
}

// Matches implements CmpValue.
func (c CmpFloat) Matches(raw string) bool {
	v, err := strconv.ParseFloat(raw, 64)
	return err == nil && v == float64(c)
}

// Action identifies a remote operation to invoke on a button press.
// It is a closed sum of Scene and Service.
type Action interface {
	// Domain returns the Home Assistant service domain the action targets.
	Domain() string

	// Service returns the service name within the domain.
	Service() string

	// Target returns the entity id the service call is addressed to.
	Target() string

	isAction()
}

// Scene activates a named scene.
type Scene string

// ServiceCall invokes an arbitrary service against an entity
// (e.g. light.turn_off against light.kitchen_light).
type ServiceCall struct {
	HAID string
	Name string
}

func (Scene) isAction()       {}
func (ServiceCall) isAction() {}

// Domain implements Action. Scenes always go through the scene domain.
func (Scene) Domain() string { return "scene" }

// Service implements Action.
func (Scene) Service() string { return "turn_on" }

// Target implements Action.
func (s Scene) Target() string { return string(s) }

// Domain implements Action. The domain is the entity id prefix
// ("light" for "light.kitchen_light"), matching how Home Assistant routes
// service calls.
func (s ServiceCall) Domain() string {
	for i := 0; i < len(s.HAID); i++ {
		if s.HAID[i] == '.' {
			return s.HAID[:i]
		}
	}
	return s.HAID
}

// Service implements Action.
func (s ServiceCall) Service() string { return s.Name }

// Target implements Action.
func (s ServiceCall) Target() string { return s.HAID }
