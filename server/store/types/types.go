// Package types defines shared domain objects of the chat service:
// users, chats, messages and the error space of the storage layer.
package types

import (
	"strings"
	"time"
)

// StoreError satisfies Error interface but allows constant values for
// direct comparison.
type StoreError string

// Error is required by error interface.
func (s StoreError) Error() string {
	return string(s)
}

const (
	// ErrInternal means DB or other internal failure.
	ErrInternal = StoreError("internal")
	// ErrMalformed means the input is malformed.
	ErrMalformed = StoreError("malformed")
	// ErrFailed means app denied the request.
	ErrFailed = StoreError("failed")
	// ErrDuplicate means duplicate entry, such as a second direct chat
	// for the same pair of users.
	ErrDuplicate = StoreError("duplicate value")
	// ErrNotFound means the object was not found.
	ErrNotFound = StoreError("not found")
	// ErrUserNotFound means the user was not found.
	ErrUserNotFound = StoreError("user not found")
	// ErrChatNotFound means the chat was not found.
	ErrChatNotFound = StoreError("chat not found")
	// ErrPermissionDenied means the requester has no permission for the
	// operation, e.g. mutating a message they did not author.
	ErrPermissionDenied = StoreError("denied")
	// ErrTimeout means the operation took too long and was cancelled.
	ErrTimeout = StoreError("timeout")
)

// ChatKind is a chat category: direct or group.
type ChatKind int

const (
	// KindDirect is a 1:1 chat between exactly two users.
	KindDirect ChatKind = iota + 1
	// KindGroup is a named chat with any number of members.
	KindGroup
)

// String implements fmt.Stringer for ChatKind.
func (k ChatKind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	}
	return "unknown"
}

// ParseChatKind converts a string representation of a chat kind to ChatKind.
func ParseChatKind(s string) ChatKind {
	switch s {
	case "direct":
		return KindDirect
	case "group":
		return KindGroup
	}
	return 0
}

// Alphabet of user ids. Ids are short and case-sensitive, assigned at
// registration.
const userIdAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// UserIdLength is the fixed length of a user id.
const UserIdLength = 5

// IsValidUserId checks that the given string looks like a user id:
// exactly UserIdLength characters of the id alphabet.
func IsValidUserId(s string) bool {
	if len(s) != UserIdLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(userIdAlphabet, c) {
			return false
		}
	}
	return true
}

// UserIdAlphabet exposes the id alphabet to the id generator.
func UserIdAlphabet() string {
	return userIdAlphabet
}

// User is a registered account.
type User struct {
	// Unique id, UserIdLength alphanumeric characters.
	Id string `json:"user_id" db:"id"`
	// Display name. Not unique.
	Name string `json:"name" db:"name"`
	// Bcrypt hash of the password. Never serialized to clients.
	Passhash  []byte    `json:"-" db:"passhash"`
	CreatedAt time.Time `json:"-" db:"createdat"`
}

// Chat is a conversation: either a direct 1:1 chat or a named group.
type Chat struct {
	Id   int64    `json:"chat_id" db:"id"`
	Kind ChatKind `json:"-" db:"kind"`
	// Group name. Empty for direct chats.
	GroupName string `json:"group_name,omitempty" db:"groupname"`
	// Canonical unordered pair of member ids; set for direct chats only.
	// Uniqueness of this value guarantees at most one direct chat per pair.
	PairKey   string    `json:"-" db:"pairkey"`
	CreatedAt time.Time `json:"created_at" db:"createdat"`

	// Denormalized content, populated by list queries.
	Members  []User    `json:"members,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// IsGroup reports whether the chat is a group chat.
func (c *Chat) IsGroup() bool {
	return c.Kind == KindGroup
}

// DisplayName returns the name of the chat as seen by the given viewer:
// the group name for groups, the other member's name for direct chats.
func (c *Chat) DisplayName(viewer string) string {
	if c.Kind == KindGroup {
		return c.GroupName
	}
	if other := c.OtherMember(viewer); other != nil {
		return other.Name
	}
	return ""
}

// OtherMember returns the direct chat member other than the viewer, or nil.
func (c *Chat) OtherMember(viewer string) *User {
	for i := range c.Members {
		if c.Members[i].Id != viewer {
			return &c.Members[i]
		}
	}
	return nil
}

// PairKey computes the canonical unordered-pair key of a direct chat
// between two users. The key does not depend on argument order.
func PairKey(uidA, uidB string) string {
	if uidA > uidB {
		uidA, uidB = uidB, uidA
	}
	return uidA + ":" + uidB
}

// Message is a single chat message.
type Message struct {
	// Store-assigned id, totally ordered within a chat.
	Id     int64 `json:"id" db:"id"`
	ChatId int64 `json:"chat_id" db:"chatid"`
	// Id of the author.
	From      string    `json:"user_id" db:"userid"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"timestamp" db:"createdat"`
	// True once the message has been edited at least once.
	Edited bool `json:"edited,omitempty" db:"edited"`
}

// TimeNow returns current wall time in UTC rounded to milliseconds.
func TimeNow() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
