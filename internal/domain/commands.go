package domain

import "encoding/json"

// Command is one decoded client frame. The set of implementations is closed:
// JoinCommand, MessageCommand, LeaveCommand, VideoStateCommand, PingCommand.
type Command interface {
	CommandType() string
	command()
}

type JoinCommand struct {
	RoomID string
	Token  string
	Link   string // only used when the room has to be created
}

type MessageCommand struct {
	RoomID  string
	Token   string
	Content string
}

type LeaveCommand struct {
	RoomID string
	Token  string
}

type VideoStateCommand struct {
	RoomID string
	Token  string
	Update PlaybackUpdate
}

type PingCommand struct {
	Timestamp *float64
}

func (JoinCommand) CommandType() string       { return MsgTypeJoin }
func (MessageCommand) CommandType() string    { return MsgTypeMessage }
func (LeaveCommand) CommandType() string      { return MsgTypeLeave }
func (VideoStateCommand) CommandType() string { return MsgTypeVideoState }
func (PingCommand) CommandType() string       { return MsgTypePing }

func (JoinCommand) command()       {}
func (MessageCommand) command()    {}
func (LeaveCommand) command()      {}
func (VideoStateCommand) command() {}
func (PingCommand) command()       {}

// inboundFrame is the wire shape shared by every client frame.
type inboundFrame struct {
	Type        string   `json:"type"`
	Token       string   `json:"token"`
	RoomID      string   `json:"roomId"`
	Link        string   `json:"link"`
	Content     *string  `json:"content"`
	IsPlaying   *bool    `json:"isPlaying"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
	Timestamp   *float64 `json:"timestamp"`
}

// DecodeCommand parses a raw client frame. Unknown types, malformed JSON and
// missing required fields yield ErrProtocol. Tokens are not checked here.
func DecodeCommand(data []byte) (Command, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, Protocolf("invalid message format")
	}

	switch f.Type {
	case MsgTypePing:
		return PingCommand{Timestamp: f.Timestamp}, nil
	case MsgTypeJoin, MsgTypeMessage, MsgTypeLeave, MsgTypeVideoState:
	case "":
		return nil, Protocolf("type is required")
	default:
		return nil, Protocolf("unknown message type %q", f.Type)
	}

	if f.RoomID == "" {
		return nil, Protocolf("roomId is required")
	}

	switch f.Type {
	case MsgTypeJoin:
		return JoinCommand{RoomID: f.RoomID, Token: f.Token, Link: f.Link}, nil

	case MsgTypeMessage:
		if f.Content == nil {
			return nil, Protocolf("content is required")
		}
		return MessageCommand{RoomID: f.RoomID, Token: f.Token, Content: *f.Content}, nil

	case MsgTypeLeave:
		return LeaveCommand{RoomID: f.RoomID, Token: f.Token}, nil

	default: // MsgTypeVideoState
		if f.IsPlaying == nil || f.CurrentTime == nil || f.Duration == nil {
			return nil, Protocolf("isPlaying, currentTime and duration are required")
		}
		if *f.Duration < 0 {
			return nil, Protocolf("duration must not be negative")
		}
		return VideoStateCommand{
			RoomID: f.RoomID,
			Token:  f.Token,
			Update: PlaybackUpdate{
				IsPlaying:   *f.IsPlaying,
				CurrentTime: *f.CurrentTime,
				Duration:    *f.Duration,
			},
		}, nil
	}
}
