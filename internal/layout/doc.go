// Package layout defines the declarative directive model that binds display
// rows and physical buttons to Home Assistant entities.
//
// A layout file is a JSON array of externally tagged directives. Three
// variants exist: Text paints a static label, Line paints a label followed
// by a live entity value, and Button binds a physical button to a
// comparison-driven label and a pair of remote actions. Validation
// partitions the list into a row-indexed render plan and a button-indexed
// action table and collects the distinct entity ids the panel must observe.
//
// Layout files are selected by device identity: <device-id>.json when
// present, base.json otherwise, so a fleet of panels can share one layout
// directory.
package layout
