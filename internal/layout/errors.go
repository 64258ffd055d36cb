package layout

import "errors"

var (
	// ErrMalformedDirective indicates a layout file entry that could not be
	// decoded.
	ErrMalformedDirective = errors.New("layout: malformed directive")

	// ErrUnknownVariant indicates a variant tag outside the closed set.
	ErrUnknownVariant = errors.New("layout: unknown variant")

	// ErrLineOutOfRange indicates a directive targeting a display row the
	// surface does not have.
	ErrLineOutOfRange = errors.New("layout: line out of range")

	// ErrButtonOutOfRange indicates a button index outside the panel's
	// physical buttons.
	ErrButtonOutOfRange = errors.New("layout: button out of range")

	// ErrDuplicateButton indicates two directives bound to the same button.
	ErrDuplicateButton = errors.New("layout: duplicate button binding")

	// ErrMissingEntity indicates a directive that requires an entity id but
	// carries none.
	ErrMissingEntity = errors.New("layout: missing entity id")

	// ErrNoLayoutFile indicates that neither a device-specific layout nor
	// the base layout exists in the layout directory.
	ErrNoLayoutFile = errors.New("layout: no layout file found")
)
