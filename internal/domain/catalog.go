package domain

import "time"

// CatalogEntry is the durable record of a room created over HTTP.
type CatalogEntry struct {
	RoomID    string    `json:"roomId"`
	Link      string    `json:"link"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRoomRequest is the body of POST /api/v1/rooms. The link may be set
// later by the first join that carries one.
type CreateRoomRequest struct {
	Link string `json:"link" binding:"omitempty,url"`
}

// CreateRoomResponse is returned by POST /api/v1/rooms.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	Link   string `json:"link,omitempty"`
}

// PostMessageRequest is the body of POST /api/v1/rooms/:id/messages.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
