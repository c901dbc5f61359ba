// Package adapter contains the interfaces to be implemented by the database adapter.
package adapter

import (
	"context"
	"encoding/json"

	t "github.com/parley-im/parley/server/store/types"
)

// Adapter is the interface that must be implemented by a database adapter.
// The current schema supports a single database connection.
// Adapters normalize driver errors to types.StoreError values.
type Adapter interface {
	// Open and configure the adapter.
	Open(config json.RawMessage) error
	// Close the adapter.
	Close() error
	// IsOpen checks if the adapter is ready for use.
	IsOpen() bool
	// GetName returns the name of the adapter.
	GetName() string
	// CheckDbVersion checks if the actual database version matches adapter version.
	CheckDbVersion() error
	// CreateDb creates the database optionally dropping an existing database first.
	CreateDb(reset bool) error
	// Stats returns the underlying connection pool statistics.
	Stats() interface{}

	// User management

	// UserCreate inserts a new user. Returns types.ErrDuplicate if the
	// proposed id is already taken.
	UserCreate(ctx context.Context, user *t.User) error
	// UserGet fetches a single user by id.
	UserGet(ctx context.Context, id string) (*t.User, error)
	// UserGetByName fetches all users with the given display name,
	// oldest first. Names are not unique.
	UserGetByName(ctx context.Context, name string) ([]t.User, error)

	// Chat management

	// ChatCreate inserts a new chat with the given initial members.
	ChatCreate(ctx context.Context, chat *t.Chat, members ...string) error
	// ChatGetOrCreateDirect returns the direct chat between the two users,
	// inserting the proposed chat if none exists. Safe against concurrent
	// creation: exactly one chat survives per unordered pair.
	ChatGetOrCreateDirect(ctx context.Context, proposed *t.Chat, uidA, uidB string) (*t.Chat, error)
	// ChatGet fetches a chat with its member list. Messages are not loaded.
	ChatGet(ctx context.Context, id int64) (*t.Chat, error)
	// ChatsForUser fetches all chats the user is a member of, with members
	// and complete ordered message history denormalized in.
	ChatsForUser(ctx context.Context, uid string) ([]t.Chat, error)
	// ChatAddMembers adds the given users to a chat in a single transaction,
	// optionally renaming the chat into a group. Existing memberships are
	// kept unchanged. Returns types.ErrChatNotFound for an unknown chat.
	ChatAddMembers(ctx context.Context, id int64, uids []string, groupName string) error
	// ChatIsMember checks if the user is a member of the chat.
	ChatIsMember(ctx context.Context, id int64, uid string) (bool, error)
	// ChatDelete removes the chat with its memberships and messages.
	ChatDelete(ctx context.Context, id int64) error

	// Message management

	// MessageSave appends a message to its chat and assigns Id. The append
	// is refused with types.ErrChatNotFound or types.ErrPermissionDenied
	// if the chat is gone or the author is not a member.
	MessageSave(ctx context.Context, msg *t.Message) error
	// MessageGet fetches a single message by id.
	MessageGet(ctx context.Context, id int64) (*t.Message, error)
	// MessageMutate edits (content != nil) or deletes (content == nil) a
	// message in one transaction. The mutation is applied only when the
	// requester authored the message; otherwise types.ErrPermissionDenied.
	// Returns the message as of after the mutation.
	MessageMutate(ctx context.Context, id int64, requester string, content *string) (*t.Message, error)
}
