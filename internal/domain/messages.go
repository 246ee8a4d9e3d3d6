package domain

import "time"

// Frame types sent by clients.
const (
	MsgTypeJoin       = "join"
	MsgTypeMessage    = "message"
	MsgTypeLeave      = "leave"
	MsgTypeVideoState = "video_state"
	MsgTypePing       = "ping"
)

// Frame types sent to clients.
const (
	MsgTypeJoined           = "joined"
	MsgTypeLeft             = "left"
	MsgTypePong             = "pong"
	MsgTypeError            = "error"
	MsgTypeUserJoined       = "user_joined"
	MsgTypeUserLeft         = "user_left"
	MsgTypeChat             = "message"
	MsgTypeVideoStateUpdate = "video_state_update"
)

// Action types classify outbound frames for the client UI.
const (
	ActionSystem = "system"
	ActionChat   = "chat"
	ActionMedia  = "media"
)

// Server -> client frames

type JoinedMessage struct {
	Type       string   `json:"type"`
	ActionType string   `json:"actionType"`
	RoomID     string   `json:"roomId"`
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	Link       string   `json:"link,omitempty"`
	Members    []Member `json:"members,omitempty"`
	Player     *Player  `json:"player,omitempty"`
}

type LeftMessage struct {
	Type       string `json:"type"`
	ActionType string `json:"actionType"`
	RoomID     string `json:"roomId"`
	UserID     string `json:"userId"`
}

type PongMessage struct {
	Type       string   `json:"type"`
	ActionType string   `json:"actionType"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
	ServerTime int64    `json:"serverTime"`
}

type ErrorMessage struct {
	Type       string `json:"type"`
	ActionType string `json:"actionType"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// MemberEvent is broadcast as user_joined / user_left.
type MemberEvent struct {
	Type       string `json:"type"`
	ActionType string `json:"actionType"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	RoomID     string `json:"roomId"`
	Timestamp  int64  `json:"timestamp"`
}

// ChatEvent is broadcast for chat messages.
type ChatEvent struct {
	Type       string `json:"type"`
	ActionType string `json:"actionType"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	RoomID     string `json:"roomId"`
	Timestamp  int64  `json:"timestamp"`
	Content    string `json:"content"`
}

// VideoStateEvent is broadcast for accepted playback updates and their
// compensation pulses.
type VideoStateEvent struct {
	Type        string  `json:"type"`
	ActionType  string  `json:"actionType"`
	UserID      string  `json:"userId"`
	Name        string  `json:"name"`
	RoomID      string  `json:"roomId"`
	Timestamp   int64   `json:"timestamp"`
	IsPlaying   bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Compensated bool    `json:"compensated,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:       MsgTypeError,
		ActionType: ActionSystem,
		Code:       code,
		Message:    message,
	}
}

func NewMemberEvent(eventType, roomID string, id Identity, at time.Time) *MemberEvent {
	return &MemberEvent{
		Type:       eventType,
		ActionType: ActionSystem,
		UserID:     id.UserID,
		Name:       id.DisplayName,
		RoomID:     roomID,
		Timestamp:  EpochMillis(at),
	}
}

func NewChatEvent(roomID string, id Identity, content string, at time.Time) *ChatEvent {
	return &ChatEvent{
		Type:       MsgTypeChat,
		ActionType: ActionChat,
		UserID:     id.UserID,
		Name:       id.DisplayName,
		RoomID:     roomID,
		Timestamp:  EpochMillis(at),
		Content:    content,
	}
}

func NewVideoStateEvent(roomID string, id Identity, p Player, at time.Time, compensated bool) *VideoStateEvent {
	return &VideoStateEvent{
		Type:        MsgTypeVideoStateUpdate,
		ActionType:  ActionMedia,
		UserID:      id.UserID,
		Name:        id.DisplayName,
		RoomID:      roomID,
		Timestamp:   EpochMillis(at),
		IsPlaying:   p.IsPlaying,
		CurrentTime: p.CurrentTime,
		Duration:    p.Duration,
		Compensated: compensated,
	}
}
