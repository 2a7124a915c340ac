package state

// ChatState is the dialog step a chat is in
type ChatState string

const (
	StateNone ChatState = ""

	// StateConfirmDelete waits for the second click of /deleteuser
	StateConfirmDelete ChatState = "confirm_delete"
)

// Data keys
const (
	KeyDeleteUID = "delete_uid"
)

// ChatData holds a chat's dialog state and its temporary values
type ChatData struct {
	State ChatState
	Data  map[string]string
}
