// Package ui renders device status for the airctrl CLI.
//
// It provides two surfaces: a one-shot styled rendering of a status
// snapshot (used by `airctrl status`), and a bubbletea model for the
// live `airctrl watch` dashboard that repaints on every observation
// update.
//
// Well-known status fields are shown with friendly labels and units;
// everything else passes through verbatim, so new firmware fields are
// never hidden.
package ui
