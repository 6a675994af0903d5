package domain

import "time"

// User is an account in the identity system. The messaging core references
// users by id and reads profile fields when composing summaries.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	AvatarURL      *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Profile is the subset of a user that other participants may see.
type Profile struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Profile projects the public fields of a user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// Conversation is the durable record for exactly one unordered pair of
// users. The pair is stored canonically: UserLow < UserHigh (or equal for
// a self conversation), so each pair maps to a single row.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserLow   int64     `db:"user_low" json:"user_low"`
	UserHigh  int64     `db:"user_high" json:"user_high"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PartnerOf returns the other participant of the conversation.
func (c *Conversation) PartnerOf(userID int64) int64 {
	if c.UserLow == userID {
		return c.UserHigh
	}
	return c.UserLow
}

// Message belongs to exactly one conversation. It is immutable once
// written except for Seen, which only ever flips false to true.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	AuthorID       int64     `db:"author_id" json:"author_id"`
	Text           string    `db:"text" json:"text"`
	ImageURL       string    `db:"image_url" json:"image_url,omitempty"`
	VideoURL       string    `db:"video_url" json:"video_url,omitempty"`
	Seen           bool      `db:"seen" json:"seen"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is one sidebar row from a particular viewer's
// perspective: the partner, the latest message, and how many of the
// partner's messages the viewer has not seen yet.
type ConversationSummary struct {
	ConversationID int64     `json:"conversation_id"`
	PartnerID      int64     `json:"partner_id"`
	Partner        Profile   `json:"partner"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UnseenCount    int       `json:"unseen_count"`
	Online         bool      `json:"online"`
	UpdatedAt      time.Time `json:"updated_at"`
}
