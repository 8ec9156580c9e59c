// Package field models a single labeled form input. A field carries no
// validation logic: values, error flags and helper text are supplied by the
// caller on every render.
package field

import "sync"

// Type is the declared input type.
type Type string

const (
	TypeText     Type = "text"
	TypePassword Type = "password"
)

// Props are the caller-controlled inputs of one render.
type Props struct {
	Value      string
	Error      bool
	HelperText string
	Disabled   bool
}

// View is a rendered field, ready for a template, JSON encoder or prompt.
type View struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	InputType  Type   `json:"inputType"`
	Secret     bool   `json:"secret"`
	Revealed   bool   `json:"revealed"`
	Error      bool   `json:"error"`
	HelperText string `json:"helperText,omitempty"`
	Disabled   bool   `json:"disabled"`
}

// Field is one input. Secret fields keep a private reveal flag that is not
// part of the form values and is never persisted.
type Field struct {
	Name  string
	Label string
	Type  Type

	mu       sync.Mutex
	revealed bool
}

// New returns a field; an empty type defaults to text.
func New(name, label string, typ Type) *Field {
	if typ == "" {
		typ = TypeText
	}
	return &Field{Name: name, Label: label, Type: typ}
}

// Secret reports whether the field masks its value.
func (f *Field) Secret() bool {
	return f.Type == TypePassword
}

// Toggle flips the reveal flag of a secret field and returns the new state.
// It is a no-op on plain fields.
func (f *Field) Toggle() bool {
	if !f.Secret() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revealed = !f.revealed
	return f.revealed
}

// Revealed reports whether a secret field currently shows its value.
func (f *Field) Revealed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revealed
}

// InputType is the type actually rendered: a revealed secret renders as text.
func (f *Field) InputType() Type {
	if f.Secret() && f.Revealed() {
		return TypeText
	}
	return f.Type
}

// Render combines the field with the caller's props.
func (f *Field) Render(p Props) View {
	return View{
		Name:       f.Name,
		Label:      f.Label,
		Value:      p.Value,
		InputType:  f.InputType(),
		Secret:     f.Secret(),
		Revealed:   f.Secret() && f.Revealed(),
		Error:      p.Error,
		HelperText: p.HelperText,
		Disabled:   p.Disabled,
	}
}
