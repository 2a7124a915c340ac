package formatting

import (
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

// StatusDisplay is the emoji and label shown for a status
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetBookingStatusDisplay returns the emoji and label of a booking status
func GetBookingStatusDisplay(status model.BookingStatus) StatusDisplay {
	displays := map[model.BookingStatus]StatusDisplay{
		model.BookingStatusPending:  {"⏳", "Pending"},
		model.BookingStatusAccepted: {"✅", "Accepted"},
		model.BookingStatusRejected: {"🚫", "Rejected"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}

// GetViewStateDisplay returns the emoji and label of a view state
func GetViewStateDisplay(state view.State) StatusDisplay {
	displays := map[view.State]StatusDisplay{
		view.StateNoData:  {"⚪️", "No data"},
		view.StateLoading: {"🔄", "Loading..."},
		view.StateReady:   {"🟢", "Up to date"},
		view.StateError:   {"⚠️", "Error"},
		view.StateClosed:  {"⚫️", "Closed"},
	}

	if display, ok := displays[state]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}
