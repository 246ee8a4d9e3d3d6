package pubsub

import "strings"

// ChannelRoomPrefix prefixes every per-room channel name.
const ChannelRoomPrefix = "room:"

// RoomChannel returns the bus channel for a room.
func RoomChannel(roomID string) string {
	return ChannelRoomPrefix + roomID
}

// RoomFromChannel extracts the room id from a room channel name.
func RoomFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelRoomPrefix) {
		return "", false
	}
	roomID := strings.TrimPrefix(channel, ChannelRoomPrefix)
	return roomID, roomID != ""
}
