package layout

import (
	"encoding/json"
	"fmt"
)

// The wire form is externally tagged: every directive, comparison value and
// action serialises as a single-key object whose key names the variant,
// e.g. {"Text":{"line":0,"text":"Kitchen","color":65535}} or {"Str":"on"}.
// Round-tripping a directive list through Marshal and Unmarshal yields an
// equivalent list.

type textJSON struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Color Color  `json:"color"`
}

type lineJSON struct {
	Line    int    `json:"line"`
	HAID    string `json:"ha_id"`
	Text    string `json:"text"`
	MakeInt bool   `json:"make_int"`
	Color   Color  `json:"color"`
}

type buttonJSON struct {
	Button    int             `json:"button"`
	HAID      string          `json:"ha_id"`
	Cmp       json.RawMessage `json:"cmp"`
	TextOn    string          `json:"text_on"`
	TextOff   string          `json:"text_off"`
	ActionOn  json.RawMessage `json:"action_on"`
	ActionOff json.RawMessage `json:"action_off"`
	Color     Color           `json:"color"`
}

type serviceJSON struct {
	HAID    string `json:"ha_id"`
	Service string `json:"service"`
}

// MarshalJSON implements json.Marshaler.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]textJSON{"Text": {Line: t.Line, Text: t.Text, Color: t.Color}})
}

// MarshalJSON implements json.Marshaler.
func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]lineJSON{"Line": {
		Line: l.Line, HAID: l.HAID, Text: l.Text, MakeInt: l.MakeInt, Color: l.Color,
	}})
}

// MarshalJSON implements json.Marshaler.
func (b Button) MarshalJSON() ([]byte, error) {
	cmp, err := marshalCmp(b.Cmp)
	if err != nil {
		return nil, err
	}
	on, err := marshalAction(b.ActionOn)
	if err != nil {
		return nil, err
	}
	off, err := marshalAction(b.ActionOff)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]buttonJSON{"Button": {
		Button: b.Button, HAID: b.HAID, Cmp: cmp,
		TextOn: b.TextOn, TextOff: b.TextOff,
		ActionOn: on, ActionOff: off, Color: b.Color,
	}})
}

func marshalCmp(c CmpValue) (json.RawMessage, error) {
	switch v := c.(type) {
	case CmpStr:
		return json.Marshal(map[string]string{"Str": string(v)})
	case CmpInt:
		return json.Marshal(map[string]int64{"Int": int64(v)})
	case CmpFloat:
		return json.Marshal(map[string]float64{"Float": float64(v)})
	default:
		return nil, fmt.Errorf("%w: cmp %T", ErrUnknownVariant, c)
	}
}

func marshalAction(a Action) (json.RawMessage, error) {
	switch v := a.(type) {
	case Scene:
		return json.Marshal(map[string]string{"Scene": string(v)})
	case ServiceCall:
		return json.Marshal(map[string]serviceJSON{"Service": {HAID: v.HAID, Service: v.Name}})
	default:
		return nil, fmt.Errorf("%w: action %T", ErrUnknownVariant, a)
	}
}

// UnmarshalDirective decodes a single externally tagged directive object.
func UnmarshalDirective(data []byte) (Directive, error) {
	tag, payload, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Text":
		var t textJSON
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, fmt.Errorf("%w: Text: %v", ErrMalformedDirective, err)
		}
		return Text{Line: t.Line, Text: t.Text, Color: t.Color}, nil
	case "Line":
		var l lineJSON
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, fmt.Errorf("%w: Line: %v", ErrMalformedDirective, err)
		}
		return Line{Line: l.Line, HAID: l.HAID, Text: l.Text, MakeInt: l.MakeInt, Color: l.Color}, nil
	case "Button":
		var b buttonJSON
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("%w: Button: %v", ErrMalformedDirective, err)
		}
		cmp, err := unmarshalCmp(b.Cmp)
		if err != nil {
			return nil, err
		}
		on, err := unmarshalAction(b.ActionOn)
		if err != nil {
			return nil, err
		}
		off, err := unmarshalAction(b.ActionOff)
		if err != nil {
			return nil, err
		}
		return Button{
			Button: b.Button, HAID: b.HAID, Cmp: cmp,
			TextOn: b.TextOn, TextOff: b.TextOff,
			ActionOn: on, ActionOff: off, Color: b.Color,
		}, nil
	default:
		return nil, fmt.Errorf("%w: directive %q", ErrUnknownVariant, tag)
	}
}

func unmarshalCmp(data json.RawMessage) (CmpValue, error) {
	tag, payload, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Str":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("%w: Str: %v", ErrMalformedDirective, err)
		}
		return CmpStr(s), nil
	case "Int":
		var n int64
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("%w: Int: %v", ErrMalformedDirective, err)
		}
		return CmpInt(n), nil
	case "Float":
		var f float64
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, fmt.Errorf("%w: Float: %v", ErrMalformedDirective, err)
		}
		return CmpFloat(f), nil
	default:
		return nil, fmt.Errorf("%w: cmp %q", ErrUnknownVariant, tag)
	}
}

func unmarshalAction(data json.RawMessage) (Action, error) {
	tag, payload, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Scene":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("%w: Scene: %v", ErrMalformedDirective, err)
		}
		return Scene(s), nil
	case "Service":
		var sv serviceJSON
		if err := json.Unmarshal(payload, &sv); err != nil {
			return nil, fmt.Errorf("%w: Service: %v", ErrMalformedDirective, err)
		}
		return ServiceCall{HAID: sv.HAID, Name: sv.Service}, nil
	default:
		return nil, fmt.Errorf("%w: action %q", ErrUnknownVariant, tag)
	}
}

// splitTag pulls apart a single-key tagged object into its variant name and
// payload. Objects with zero keys or more than one key are rejected.
func splitTag(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDirective, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("%w: expected single variant key, got %d", ErrMalformedDirective, len(obj))
	}
	for tag, payload := range obj {
		return tag, payload, nil
	}
	return "", nil, ErrMalformedDirective // unreachable
}

// List is an ordered directive sequence as read from a layout file.
type List []Directive

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDirective, err)
	}
	out := make(List, 0, len(raw))
	for i, r := range raw {
		d, err := UnmarshalDirective(r)
		if err != nil {
			return fmt.Errorf("directive %d: %w", i, err)
		}
		out = append(out, d)
	}
	*l = out
	return nil
}
