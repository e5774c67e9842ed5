package store

// Key suffixes per room id R: R_content, R_sessionEnd, R_messages.
// R_roomDetails is no longer written but is still removed on purge so
// rooms left behind by older deployments are cleaned up too.
const (
	suffixContent     = "_content"
	suffixSessionEnd  = "_sessionEnd"
	suffixMessages    = "_messages"
	suffixRoomDetails = "_roomDetails"
)

type roomKeys struct {
	content     string
	sessionEnd  string
	messages    string
	roomDetails string
}

func keysFor(prefix, roomID string) roomKeys {
	base := prefix + roomID
	return roomKeys{
		content:     base + suffixContent,
		sessionEnd:  base + suffixSessionEnd,
		messages:    base + suffixMessages,
		roomDetails: base + suffixRoomDetails,
	}
}

func (k roomKeys) all() []string {
	return []string{k.content, k.sessionEnd, k.messages, k.roomDetails}
}
