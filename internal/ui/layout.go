package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutDrawerWidth is the minimum width at which the folder drawer is drawn.
	LayoutDrawerWidth = 80
)

// Card sizing. Card size is stored in prefs in the same units as the web
// client's slider; one terminal column per ten units.
const (
	CardSizeMin  = 150
	CardSizeMax  = 600
	CardSizeStep = 50

	cardUnitsPerColumn = 10
	cardHeight         = 7
	drawerWidth        = 26
)

// Log display limits.
const (
	// LogTailLines is how many lines of the log file the logs view loads.
	LogTailLines = 400
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = 250 * time.Millisecond

	// UploadTimeout bounds a single upload request.
	UploadTimeout = 30 * time.Minute

	// EditTimeout bounds saving one edit or delete.
	EditTimeout = 30 * time.Second

	// maxNotices is how many notices are shown at once.
	maxNotices = 3
)

// cardWidth converts a stored card size into a card width in columns.
func cardWidth(size int) int {
	return clamp(size, CardSizeMin, CardSizeMax) / cardUnitsPerColumn
}
