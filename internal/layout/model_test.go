package layout

import (
	"errors"
	"reflect"
	"testing"
)

func validDirectives() List {
	return List{
		Text{Line: 0, Text: "Kitchen", Color: ColorWhite},
		Line{Line: 2, HAID: "sensor.outside_temp", Text: "Outside Temp ", MakeInt: true, Color: ColorCyan},
		Line{Line: 3, HAID: "sensor.outside_temp", Text: "Exact", Color: ColorCyan},
		Button{
			Button: 0, HAID: "light.kitchen_light", Cmp: CmpStr("on"),
			TextOn: "Dark", TextOff: "Light",
			ActionOn: Scene("scene.kitchen_on"), ActionOff: Scene("scene.kitchen_off"),
			Color: ColorYellow,
		},
	}
}

func TestNewModel_Partition(t *testing.T) {
	m, err := NewModel(validDirectives(), 8)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	if got := len(m.Row(0)); got != 1 {
		t.Errorf("Row(0) has %d directives, want 1", got)
	}
	if got := len(m.Row(1)); got != 0 {
		t.Errorf("Row(1) has %d directives, want 0", got)
	}
	if m.Button(0) == nil {
		t.Error("Button(0) = nil, want binding")
	}
	if m.Button(1) != nil {
		t.Error("Button(1) != nil, want unbound")
	}
	if m.Button(-1) != nil || m.Button(ButtonCount) != nil {
		t.Error("out-of-range button lookups must be nil")
	}

	want := []string{"light.kitchen_light", "sensor.outside_temp"}
	if got := m.EntityIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("EntityIDs() = %v, want %v", got, want)
	}
}

func TestNewModel_Validation(t *testing.T) {
	tests := []struct {
		name       string
		directives List
		rows       int
		wantErr    error
	}{
		{
			name:       "text line beyond rows",
			directives: List{Text{Line: 8, Text: "x"}},
			rows:       8,
			wantErr:    ErrLineOutOfRange,
		},
		{
			name:       "negative line",
			directives: List{Line{Line: -1, HAID: "sensor.t", Text: "x"}},
			rows:       8,
			wantErr:    ErrLineOutOfRange,
		},
		{
			name:       "line without entity",
			directives: List{Line{Line: 0, Text: "x"}},
			rows:       8,
			wantErr:    ErrMissingEntity,
		},
		{
			name: "button out of range",
			directives: List{Button{
				Button: 3, HAID: "light.a", Cmp: CmpStr("on"),
				ActionOn: Scene("s"), ActionOff: Scene("s"),
			}},
			rows:    8,
			wantErr: ErrButtonOutOfRange,
		},
		{
			name: "duplicate button",
			directives: List{
				Button{Button: 1, HAID: "light.a", Cmp: CmpStr("on"), ActionOn: Scene("s"), ActionOff: Scene("s")},
				Button{Button: 1, HAID: "light.b", Cmp: CmpStr("on"), ActionOn: Scene("s"), ActionOff: Scene("s")},
			},
			rows:    8,
			wantErr: ErrDuplicateButton,
		},
		{
			name: "button without cmp",
			directives: List{Button{
				Button: 0, HAID: "light.a",
				ActionOn: Scene("s"), ActionOff: Scene("s"),
			}},
			rows:    8,
			wantErr: ErrMalformedDirective,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.directives, tt.rows)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewModel() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModel_TextOnly(t *testing.T) {
	m, err := NewModel(validDirectives(), 8)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}

	reduced := m.TextOnly()
	if got := len(reduced.Row(0)); got != 1 {
		t.Errorf("TextOnly Row(0) has %d directives, want 1", got)
	}
	if got := len(reduced.Row(2)); got != 0 {
		t.Errorf("TextOnly Row(2) has %d directives, want 0 (live rows dropped)", got)
	}
	if reduced.Button(0) != nil {
		t.Error("TextOnly must drop button bindings")
	}
	if len(reduced.EntityIDs()) != 0 {
		t.Errorf("TextOnly EntityIDs() = %v, want none", reduced.EntityIDs())
	}
}
