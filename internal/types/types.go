package types

import (
	"time"
)

type PostVisibility string

const (
	VisibilityPublic        PostVisibility = "Public"
	VisibilityFollowersOnly PostVisibility = "FollowersOnly"
	VisibilityMutualsOnly   PostVisibility = "MutualsOnly"
	VisibilityPrivate       PostVisibility = "Private"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "Pending"
	FriendshipAccepted FriendshipStatus = "Accepted"
	FriendshipBlocked  FriendshipStatus = "Blocked"
)

type User struct {
	Id          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarHash  string    `json:"avatar_hash,omitempty"`
	GnsZone     string    `json:"gns_zone,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Post struct {
	Id          string         `json:"id"`
	AuthorId    string         `json:"author_id"`
	Content     string         `json:"content"`
	MediaHashes []string       `json:"media_hashes,omitempty"`
	ReplyTo     string         `json:"reply_to,omitempty"`
	RepostOf    string         `json:"repost_of,omitempty"`
	Visibility  PostVisibility `json:"visibility"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	Likes       []string       `json:"likes,omitempty"`
	Reposts     int            `json:"reposts,omitempty"`
}

type ChatRoom struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerId     string    `json:"owner_id"`
	Admins      []string  `json:"admins,omitempty"`
	Members     []string  `json:"members,omitempty"`
	IsGroup     bool      `json:"is_group"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// HasMember reports whether id is in the room's member list.
func (r *ChatRoom) HasMember(id string) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}

type ChatMessage struct {
	Id          string    `json:"id"`
	RoomId      string    `json:"room_id"`
	SenderId    string    `json:"sender_id"`
	Content     string    `json:"content"`
	MediaHashes []string  `json:"media_hashes,omitempty"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type PrivateMessage struct {
	Id          string     `json:"id"`
	SenderId    string     `json:"sender_id"`
	RecipientId string     `json:"recipient_id"`
	Content     string     `json:"content"`
	MediaHashes []string   `json:"media_hashes,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type Friendship struct {
	RequesterId string           `json:"requester_id"`
	AddresseeId string           `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitempty"`
}
