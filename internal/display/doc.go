// Package display converts layout directives and cached entity state into
// draw calls against a row-addressable panel surface.
//
// The renderer recomputes the desired content of every row and button label
// each frame and only issues draw calls for cells whose (text, color) pair
// changed since the last frame, so an idle panel generates no draw traffic.
// Stale entities are marked on the value they last reported, failed button
// dispatches get a transient color flash, and an optional clock row redraws
// once per minute.
package display
