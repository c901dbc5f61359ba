// Package store provides methods for registering and accessing database adapters.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/bcrypt"

	"github.com/parley-im/parley/server/store/adapter"
	"github.com/parley-im/parley/server/store/types"
)

var adp adapter.Adapter
var availableAdapters = make(map[string]adapter.Adapter)

// Chat id generator.
var seq *sf.SnowFlake

// Timeout applied to individual adapter calls.
var opTimeout = 5 * time.Second

// Attempts at generating a unique user id before giving up.
const maxUserIdAttempts = 8

type configType struct {
	// Timeout of a single storage operation, seconds.
	OpTimeout int `json:"op_timeout"`
	// DB adapter name to use. Should be one of those specified in `Adapters`.
	UseAdapter string `json:"use_adapter"`
	// Configurations for individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

func openAdapter(workerId int, jsonconf json.RawMessage) error {
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return errors.New("store: failed to parse config: " + err.Error() + "(" + string(jsonconf) + ")")
	}

	if adp == nil {
		if len(config.UseAdapter) > 0 {
			// Adapter name specified explicitly.
			if ad, ok := availableAdapters[config.UseAdapter]; ok {
				adp = ad
			} else {
				return errors.New("store: " + config.UseAdapter + " adapter is not available in this binary")
			}
		} else if len(availableAdapters) == 1 {
			// Default to the only entry in availableAdapters.
			for _, v := range availableAdapters {
				adp = v
			}
		} else {
			return errors.New("store: db adapter is not specified. Please set `store_config.use_adapter`")
		}
	}

	if adp.IsOpen() {
		return errors.New("store: connection is already opened")
	}

	// Initialize snowflake.
	if workerId < 0 || workerId > 1023 {
		return errors.New("store: invalid worker ID")
	}
	var err error
	if seq, err = sf.NewSnowFlake(uint32(workerId)); err != nil {
		return errors.New("store: failed to init snowflake: " + err.Error())
	}

	if config.OpTimeout > 0 {
		opTimeout = time.Duration(config.OpTimeout) * time.Second
	}

	var adapterConfig json.RawMessage
	if config.Adapters != nil {
		adapterConfig = config.Adapters[adp.GetName()]
	}

	return adp.Open(adapterConfig)
}

// Open initializes the persistence system. Adapter holds a connection pool
// for a database instance.
func Open(workerId int, jsonconf json.RawMessage) error {
	if err := openAdapter(workerId, jsonconf); err != nil {
		return err
	}

	return adp.CheckDbVersion()
}

// Close terminates connection to persistent storage.
func Close() error {
	if adp.IsOpen() {
		return adp.Close()
	}

	return nil
}

// IsOpen checks if persistent storage connection has been initialized.
func IsOpen() bool {
	if adp != nil {
		return adp.IsOpen()
	}

	return false
}

// GetAdapterName returns the name of the current adapter.
func GetAdapterName() string {
	if adp != nil {
		return adp.GetName()
	}

	return ""
}

// InitDb creates a new database instance. If 'reset' is true it will first
// attempt to drop an existing database. If jsonconf is nil it assumes that
// the adapter is already open.
func InitDb(jsonconf json.RawMessage, reset bool) error {
	if !IsOpen() {
		if err := openAdapter(1, jsonconf); err != nil {
			return err
		}
	}
	return adp.CreateDb(reset)
}

// RegisterAdapter makes a persistence adapter available.
// If Register is called twice or if the adapter is nil, it panics.
func RegisterAdapter(a adapter.Adapter) {
	if a == nil {
		panic("store: Register adapter is nil")
	}

	adapterName := a.GetName()
	if _, ok := availableAdapters[adapterName]; ok {
		panic("store: adapter '" + adapterName + "' is already registered")
	}
	availableAdapters[adapterName] = a
}

// GetUid generates a unique ID suitable for use as a chat primary key.
// Snowflake ids have the top bit unset, the value fits into a signed int64.
func GetUid() int64 {
	id, _ := seq.Next()
	return int64(id)
}

// GetUidString generates a unique ID as a hex-like string, used for
// session ids.
func GetUidString() string {
	buf := make([]byte, 9)
	rand.Read(buf)
	const hexDigit = "0123456789abcdef"
	var sb strings.Builder
	for _, b := range buf {
		sb.WriteByte(hexDigit[b>>4])
		sb.WriteByte(hexDigit[b&0xf])
	}
	return sb.String()
}

// genUserId produces a random user id of types.UserIdLength characters.
func genUserId() string {
	alphabet := types.UserIdAlphabet()
	buf := make([]byte, types.UserIdLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// DbStats returns a callback returning db connection stats object.
func DbStats() func() interface{} {
	if !IsOpen() {
		return nil
	}
	return adp.Stats
}

// withOpTimeout bounds an adapter call with the configured timeout.
func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opTimeout)
}

// UsersObjMapperInterface is an interface for the User persistence mapper,
// exported to make the mapper mockable in tests.
type UsersObjMapperInterface interface {
	Create(ctx context.Context, name, password string) (*types.User, error)
	Get(ctx context.Context, id string) (*types.User, error)
	Resolve(ctx context.Context, token string) (*types.User, error)
	Authenticate(ctx context.Context, name, password string) (*types.User, error)
}

// UsersObjMapper is a users struct to hold methods for persistence mapping for the User object.
type UsersObjMapper struct{}

// Users is the anchor for storing/retrieving User objects.
var Users UsersObjMapperInterface

// Create inserts a User object into the database: hashes the password,
// assigns a fresh id, retries on an id collision.
func (UsersObjMapper) Create(ctx context.Context, name, password string) (*types.User, error) {
	passhash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	user := &types.User{
		Name:      name,
		Passhash:  passhash,
		CreatedAt: types.TimeNow(),
	}
	for i := 0; i < maxUserIdAttempts; i++ {
		user.Id = genUserId()
		err = adp.UserCreate(ctx, user)
		if err != types.ErrDuplicate {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Get returns a user object for the given user id.
func (UsersObjMapper) Get(ctx context.Context, id string) (*types.User, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.UserGet(ctx, id)
}

// Resolve maps a member token to a user: a token shaped like a user id is
// looked up by id first, then the token is retried as a display name.
// Name collisions resolve to the oldest account.
func (u UsersObjMapper) Resolve(ctx context.Context, token string) (*types.User, error) {
	if types.IsValidUserId(token) {
		user, err := u.Get(ctx, token)
		if err == nil {
			return user, nil
		}
		if err != types.ErrUserNotFound {
			return nil, err
		}
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	users, err := adp.UserGetByName(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, types.ErrUserNotFound
	}
	return &users[0], nil
}

// Authenticate finds the account matching both the name and the password.
// Names are not unique: all same-named accounts are checked, oldest first.
func (UsersObjMapper) Authenticate(ctx context.Context, name, password string) (*types.User, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	users, err := adp.UserGetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if bcrypt.CompareHashAndPassword(users[i].Passhash, []byte(password)) == nil {
			return &users[i], nil
		}
	}
	return nil, types.ErrUserNotFound
}

// ChatsObjMapperInterface is an interface for the Chat persistence mapper.
type ChatsObjMapperInterface interface {
	GetOrCreateDirect(ctx context.Context, uidA, uidB string) (*types.Chat, error)
	CreateGroup(ctx context.Context, name, creator string) (*types.Chat, error)
	Get(ctx context.Context, id int64) (*types.Chat, error)
	GetAllForUser(ctx context.Context, uid string) ([]types.Chat, error)
	AddMembers(ctx context.Context, id int64, uids []string, groupName string) error
	IsMember(ctx context.Context, id int64, uid string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// ChatsObjMapper is a struct to hold methods for persistence mapping for the Chat object.
type ChatsObjMapper struct{}

// Chats is the anchor for storing/retrieving Chat objects.
var Chats ChatsObjMapperInterface

// GetOrCreateDirect returns the direct chat between the two users, creating
// it if it does not exist yet.
func (ChatsObjMapper) GetOrCreateDirect(ctx context.Context, uidA, uidB string) (*types.Chat, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	proposed := &types.Chat{
		Id:        GetUid(),
		Kind:      types.KindDirect,
		PairKey:   types.PairKey(uidA, uidB),
		CreatedAt: types.TimeNow(),
	}
	return adp.ChatGetOrCreateDirect(ctx, proposed, uidA, uidB)
}

// CreateGroup creates a named group chat with the creator as the only member.
func (ChatsObjMapper) CreateGroup(ctx context.Context, name, creator string) (*types.Chat, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	chat := &types.Chat{
		Id:        GetUid(),
		Kind:      types.KindGroup,
		GroupName: name,
		CreatedAt: types.TimeNow(),
	}
	if err := adp.ChatCreate(ctx, chat, creator); err != nil {
		return nil, err
	}
	return chat, nil
}

// Get fetches a single chat with its member list.
func (ChatsObjMapper) Get(ctx context.Context, id int64) (*types.Chat, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.ChatGet(ctx, id)
}

// GetAllForUser loads all chats of the user including members and history.
func (ChatsObjMapper) GetAllForUser(ctx context.Context, uid string) ([]types.Chat, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.ChatsForUser(ctx, uid)
}

// AddMembers adds users to a chat, optionally promoting it to a named group.
// The operation is all-or-nothing.
func (ChatsObjMapper) AddMembers(ctx context.Context, id int64, uids []string, groupName string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.ChatAddMembers(ctx, id, uids, groupName)
}

// IsMember checks membership of a user in a chat.
func (ChatsObjMapper) IsMember(ctx context.Context, id int64, uid string) (bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.ChatIsMember(ctx, id, uid)
}

// Delete removes the chat together with memberships and messages.
func (ChatsObjMapper) Delete(ctx context.Context, id int64) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.ChatDelete(ctx, id)
}

// MessagesObjMapperInterface is an interface for the Message persistence mapper.
type MessagesObjMapperInterface interface {
	Save(ctx context.Context, msg *types.Message) error
	Get(ctx context.Context, id int64) (*types.Message, error)
	Edit(ctx context.Context, id int64, requester, content string) (*types.Message, error)
	Delete(ctx context.Context, id int64, requester string) (*types.Message, error)
}

// MessagesObjMapper is a struct to hold methods for persistence mapping for the Message object.
type MessagesObjMapper struct{}

// Messages is the anchor for storing/retrieving Message objects.
var Messages MessagesObjMapperInterface

// Save appends the message to its chat. The store assigns the id.
func (MessagesObjMapper) Save(ctx context.Context, msg *types.Message) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = types.TimeNow()
	}
	return adp.MessageSave(ctx, msg)
}

// Get fetches a single message.
func (MessagesObjMapper) Get(ctx context.Context, id int64) (*types.Message, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.MessageGet(ctx, id)
}

// Edit replaces message content and marks the message as edited. Only the
// author may edit; ownership is checked inside the same transaction.
func (MessagesObjMapper) Edit(ctx context.Context, id int64, requester, content string) (*types.Message, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.MessageMutate(ctx, id, requester, &content)
}

// Delete removes the message. Only the author may delete.
func (MessagesObjMapper) Delete(ctx context.Context, id int64, requester string) (*types.Message, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return adp.MessageMutate(ctx, id, requester, nil)
}

func init() {
	Users = UsersObjMapper{}
	Chats = ChatsObjMapper{}
	Messages = MessagesObjMapper{}
}
