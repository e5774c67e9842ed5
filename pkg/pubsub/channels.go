package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel naming conventions for cross-instance room fan-out.
const (
	// ChannelRoomToPeers carries frames one instance broadcast to a room
	// so the other instances can deliver them to their local connections.
	ChannelRoomToPeers = "collab:room:%s:to_peers"

	// PatternRoomToPeers matches ChannelRoomToPeers for every room.
	PatternRoomToPeers = "collab:room:*:to_peers"
)

// Event types.
const (
	EventRoomFrame = "room_frame"
)

// RoomToPeersChannel returns the fan-out channel name for a room.
func RoomToPeersChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomToPeers, roomID)
}

// RoomIDFromChannel extracts the room id from a channel built with
// RoomToPeersChannel. It returns "" for foreign channel names.
func RoomIDFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" {
		return ""
	}
	return parts[2]
}

// RoomFramePayload is a frame already encoded for the WebSocket wire,
// together with the connection the origin instance excluded.
type RoomFramePayload struct {
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}
