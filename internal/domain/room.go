package domain

import "time"

// NotStartedTime is the currentTime of a player that has never accepted an
// update. It sits far enough below zero that any real first position differs
// from it by more than the duplicate tolerance.
const NotStartedTime = -10.0

// Identity is the caller resolved from a token.
type Identity struct {
	UserID      string
	DisplayName string
}

// Member is one entry of a room's membership list, unique by UserID.
type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Player is the shared playback snapshot of a room.
type Player struct {
	Active      bool    `json:"active"`
	IsPlaying   bool    `json:"isPlaying"`
	Duration    float64 `json:"duration"`
	CurrentTime float64 `json:"currentTime"`
	UpdatedBy   string  `json:"updatedBy"`
	LastUpdate  float64 `json:"lastUpdate"` // epoch seconds
}

// NewPlayer returns the inactive snapshot every room starts with.
func NewPlayer() Player {
	return Player{CurrentTime: NotStartedTime}
}

// Room is the shared state of one room as held by the room store.
type Room struct {
	ID      string   `json:"roomId"`
	Link    string   `json:"link"`
	Members []Member `json:"members"`
	Player  Player   `json:"player"`
}

// HasMember reports whether userID is in the membership list.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// PlaybackUpdate is a candidate player change submitted by a client.
type PlaybackUpdate struct {
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
}

// RoomInfo is the HTTP view of a room.
type RoomInfo struct {
	Room
	LocalConnections int        `json:"activeConnections"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
}

// EpochSeconds converts t to fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// EpochMillis converts t to Unix milliseconds, the timestamp unit of every frame.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
