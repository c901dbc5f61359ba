// Package mysql is a database adapter for MySQL.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/parley-im/parley/server/store"
	t "github.com/parley-im/parley/server/store/types"
)

// adapter holds MySQL connection data.
type adapter struct {
	db     *sqlx.DB
	dsn    string
	dbName string
	// Database version
	version int
}

const (
	defaultDSN      = "root@tcp(localhost:3306)/parley?parseTime=true"
	defaultDatabase = "parley"

	adpVersion = 100

	adapterName = "mysql"
)

type configType struct {
	DSN    string `json:"dsn,omitempty"`
	DBName string `json:"database,omitempty"`
}

// Open initializes database connection.
func (a *adapter) Open(jsonconfig json.RawMessage) error {
	if a.db != nil {
		return errors.New("mysql adapter is already connected")
	}

	var err error
	var config configType
	if err = json.Unmarshal(jsonconfig, &config); err != nil {
		return errors.New("mysql adapter failed to parse config: " + err.Error())
	}

	a.dsn = config.DSN
	if a.dsn == "" {
		a.dsn = defaultDSN
	}
	a.dbName = config.DBName
	if a.dbName == "" {
		a.dbName = defaultDatabase
	}

	// Timestamp columns are DATETIME, the driver must parse them into time.Time.
	cfg, err := ms.ParseDSN(a.dsn)
	if err != nil {
		return err
	}
	cfg.ParseTime = true
	a.dsn = cfg.FormatDSN()

	a.db, err = sqlx.Open("mysql", a.dsn)
	if err != nil {
		return err
	}

	// sql.Open does not open the network connection.
	// Force network connection here.
	err = a.db.Ping()
	if isMissingDb(err) {
		// The database does not exist yet. That's fine if we are about
		// to initialize it.
		err = nil
	}
	return err
}

// Close closes the underlying database connection.
func (a *adapter) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
		a.version = -1
	}
	return err
}

// IsOpen returns true if connection to database has been established.
// It does not check if connection is actually live.
func (a *adapter) IsOpen() bool {
	return a.db != nil
}

// GetName returns string that adapter uses to register itself with store.
func (a *adapter) GetName() string {
	return adapterName
}

// Stats returns connection pool stats.
func (a *adapter) Stats() interface{} {
	if a.db == nil {
		return nil
	}
	return a.db.Stats()
}

func (a *adapter) getDbVersion() (int, error) {
	var vers string
	if err := a.db.Get(&vers, "SELECT `value` FROM kvmeta WHERE `key`='version'"); err != nil {
		if isMissingDb(err) || isMissingTable(err) || err == sql.ErrNoRows {
			err = errors.New("Database not initialized")
		}
		return -1, err
	}
	a.version, _ = strconv.Atoi(vers)

	return a.version, nil
}

// CheckDbVersion checks whether the actual DB version matches the expected version of this adapter.
func (a *adapter) CheckDbVersion() error {
	version, err := a.getDbVersion()
	if err != nil {
		return err
	}

	if version != adpVersion {
		return errors.New("Invalid database version " + strconv.Itoa(version) +
			". Expected " + strconv.Itoa(adpVersion))
	}

	return nil
}

// CreateDb initializes the storage.
func (a *adapter) CreateDb(reset bool) error {
	var err error
	var tx *sql.Tx

	// Can't use a.db here, it's tied to a database name which may not exist yet.
	cfg, _ := ms.ParseDSN(a.dsn)
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if tx, err = db.Begin(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if reset {
		if _, err = tx.Exec("DROP DATABASE IF EXISTS " + a.dbName); err != nil {
			return err
		}
	}

	if _, err = tx.Exec("CREATE DATABASE " + a.dbName + " CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		return err
	}

	if _, err = tx.Exec("USE " + a.dbName); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE users(
			id        CHAR(5) NOT NULL,
			name      VARCHAR(64) NOT NULL,
			passhash  VARBINARY(60) NOT NULL,
			createdat DATETIME(3) NOT NULL,
			PRIMARY KEY(id),
			INDEX users_name(name)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE chats(
			id        BIGINT NOT NULL,
			kind      TINYINT NOT NULL,
			groupname VARCHAR(128) NOT NULL DEFAULT '',
			pairkey   CHAR(11),
			createdat DATETIME(3) NOT NULL,
			PRIMARY KEY(id),
			UNIQUE INDEX chats_pairkey(pairkey)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE participants(
			chatid    BIGINT NOT NULL,
			userid    CHAR(5) NOT NULL,
			createdat DATETIME(3) NOT NULL,
			PRIMARY KEY(chatid, userid),
			FOREIGN KEY(chatid) REFERENCES chats(id) ON DELETE CASCADE,
			FOREIGN KEY(userid) REFERENCES users(id) ON DELETE CASCADE,
			INDEX participants_userid(userid)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		`CREATE TABLE messages(
			id        BIGINT NOT NULL AUTO_INCREMENT,
			chatid    BIGINT NOT NULL,
			userid    CHAR(5) NOT NULL,
			content   TEXT NOT NULL,
			createdat DATETIME(3) NOT NULL,
			edited    TINYINT NOT NULL DEFAULT 0,
			PRIMARY KEY(id),
			FOREIGN KEY(chatid) REFERENCES chats(id) ON DELETE CASCADE,
			INDEX messages_chatid_id(chatid, id)
		)`); err != nil {
		return err
	}

	if _, err = tx.Exec(
		"CREATE TABLE kvmeta(`key` CHAR(32), `value` TEXT, PRIMARY KEY(`key`))"); err != nil {
		return err
	}
	if _, err = tx.Exec("INSERT INTO kvmeta(`key`, `value`) VALUES('version', ?)", adpVersion); err != nil {
		return err
	}

	return tx.Commit()
}

// UserCreate creates a new user. Returns types.ErrDuplicate if the id is taken.
func (a *adapter) UserCreate(ctx context.Context, user *t.User) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO users(id, name, passhash, createdat) VALUES(?, ?, ?, ?)",
		user.Id, user.Name, user.Passhash, user.CreatedAt)
	if isDupe(err) {
		return t.ErrDuplicate
	}
	return normalizeErr(err)
}

// UserGet fetches a single user by user id.
func (a *adapter) UserGet(ctx context.Context, id string) (*t.User, error) {
	var user t.User
	err := a.db.GetContext(ctx, &user,
		"SELECT id, name, passhash, createdat FROM users WHERE id=?", id)
	if err == sql.ErrNoRows {
		return nil, t.ErrUserNotFound
	}
	if err != nil {
		return nil, normalizeErr(err)
	}
	return &user, nil
}

// UserGetByName fetches all users with the given display name, oldest first.
func (a *adapter) UserGetByName(ctx context.Context, name string) ([]t.User, error) {
	var users []t.User
	err := a.db.SelectContext(ctx, &users,
		"SELECT id, name, passhash, createdat FROM users WHERE name=? ORDER BY createdat", name)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return users, nil
}

// ChatCreate creates a new chat with the given initial members.
func (a *adapter) ChatCreate(ctx context.Context, chat *t.Chat, members ...string) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return normalizeErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = insertChat(ctx, tx, chat); err != nil {
		return normalizeErr(err)
	}
	for _, uid := range members {
		if err = insertParticipant(ctx, tx, chat.Id, uid, chat.CreatedAt); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return normalizeErr(err)
}

func insertChat(ctx context.Context, tx *sqlx.Tx, chat *t.Chat) error {
	// NULL instead of an empty pairkey so group chats don't collide on the
	// unique index.
	var pairKey interface{}
	if chat.PairKey != "" {
		pairKey = chat.PairKey
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO chats(id, kind, groupname, pairkey, createdat) VALUES(?, ?, ?, ?, ?)",
		chat.Id, chat.Kind, chat.GroupName, pairKey, chat.CreatedAt)
	return err
}

func insertParticipant(ctx context.Context, tx *sqlx.Tx, chatId int64, uid string, at interface{}) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO participants(chatid, userid, createdat) VALUES(?, ?, ?)", chatId, uid, at)
	if isFkViolation(err) {
		return t.ErrUserNotFound
	}
	return normalizeErr(err)
}

// ChatGetOrCreateDirect returns the direct chat between two users, creating
// it if missing. The unique pairkey index arbitrates concurrent creation:
// the loser of the race re-reads the winner's chat.
func (a *adapter) ChatGetOrCreateDirect(ctx context.Context, proposed *t.Chat, uidA, uidB string) (*t.Chat, error) {
	for attempt := 0; attempt < 2; attempt++ {
		chat, err := a.chatGetByPairKey(ctx, proposed.PairKey)
		if err == nil {
			return chat, nil
		}
		if err != t.ErrChatNotFound {
			return nil, err
		}

		err = a.ChatCreate(ctx, proposed, uidA, uidB)
		if err == nil {
			return a.ChatGet(ctx, proposed.Id)
		}
		if err != t.ErrDuplicate {
			return nil, err
		}
		// Lost the race. Re-read the winner's chat on the next pass.
	}

	return nil, t.ErrDuplicate
}

func (a *adapter) chatGetByPairKey(ctx context.Context, key string) (*t.Chat, error) {
	var chat t.Chat
	err := a.db.GetContext(ctx, &chat,
		"SELECT id, kind, groupname, COALESCE(pairkey, '') AS pairkey, createdat FROM chats WHERE pairkey=?", key)
	if err == sql.ErrNoRows {
		return nil, t.ErrChatNotFound
	}
	if err != nil {
		return nil, normalizeErr(err)
	}

	if chat.Members, err = a.membersForChat(ctx, chat.Id); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ChatGet fetches a single chat with its member list.
func (a *adapter) ChatGet(ctx context.Context, id int64) (*t.Chat, error) {
	var chat t.Chat
	err := a.db.GetContext(ctx, &chat,
		"SELECT id, kind, groupname, COALESCE(pairkey, '') AS pairkey, createdat FROM chats WHERE id=?", id)
	if err == sql.ErrNoRows {
		return nil, t.ErrChatNotFound
	}
	if err != nil {
		return nil, normalizeErr(err)
	}

	if chat.Members, err = a.membersForChat(ctx, chat.Id); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (a *adapter) membersForChat(ctx context.Context, id int64) ([]t.User, error) {
	var members []t.User
	err := a.db.SelectContext(ctx, &members,
		"SELECT u.id, u.name, u.createdat FROM participants p JOIN users u ON u.id=p.userid "+
			"WHERE p.chatid=? ORDER BY p.createdat", id)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return members, nil
}

// ChatsForUser loads all chats the user belongs to with member lists and
// complete ordered histories denormalized in.
func (a *adapter) ChatsForUser(ctx context.Context, uid string) ([]t.Chat, error) {
	var chats []t.Chat
	err := a.db.SelectContext(ctx, &chats,
		"SELECT c.id, c.kind, c.groupname, COALESCE(c.pairkey, '') AS pairkey, c.createdat "+
			"FROM chats c JOIN participants p ON p.chatid=c.id WHERE p.userid=? ORDER BY c.createdat", uid)
	if err != nil {
		return nil, normalizeErr(err)
	}
	if len(chats) == 0 {
		return chats, nil
	}

	index := make(map[int64]*t.Chat, len(chats))
	ids := make([]int64, len(chats))
	for i := range chats {
		ids[i] = chats[i].Id
		index[chats[i].Id] = &chats[i]
	}

	// Members of all the chats in one query.
	query, args, _ := sqlx.In(
		"SELECT p.chatid, u.id, u.name, u.createdat FROM participants p JOIN users u ON u.id=p.userid "+
			"WHERE p.chatid IN (?) ORDER BY p.createdat", ids)
	var members []struct {
		ChatId int64 `db:"chatid"`
		t.User
	}
	if err = a.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, normalizeErr(err)
	}
	for i := range members {
		chat := index[members[i].ChatId]
		chat.Members = append(chat.Members, members[i].User)
	}

	// Complete histories, ordered by message id within each chat.
	query, args, _ = sqlx.In(
		"SELECT id, chatid, userid, content, createdat, edited FROM messages WHERE chatid IN (?) ORDER BY chatid, id", ids)
	var messages []t.Message
	if err = a.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, normalizeErr(err)
	}
	for i := range messages {
		chat := index[messages[i].ChatId]
		chat.Messages = append(chat.Messages, messages[i])
	}

	return chats, nil
}

// ChatAddMembers adds users to a chat and optionally promotes it to a named
// group, all in one transaction.
func (a *adapter) ChatAddMembers(ctx context.Context, id int64, uids []string, groupName string) error {
	// A name of nothing but whitespace does not promote the chat.
	groupName = strings.TrimSpace(groupName)

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return normalizeErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Lock the chat row for the duration of the membership update.
	var kind t.ChatKind
	err = tx.GetContext(ctx, &kind, "SELECT kind FROM chats WHERE id=? FOR UPDATE", id)
	if err == sql.ErrNoRows {
		err = t.ErrChatNotFound
		return err
	}
	if err != nil {
		return normalizeErr(err)
	}

	now := t.TimeNow()
	for _, uid := range uids {
		// Existing memberships are kept as is.
		if _, err = tx.ExecContext(ctx,
			"INSERT IGNORE INTO participants(chatid, userid, createdat) VALUES(?, ?, ?)",
			id, uid, now); err != nil {
			if isFkViolation(err) {
				err = t.ErrUserNotFound
			}
			return err
		}
	}

	if groupName != "" {
		if _, err = tx.ExecContext(ctx,
			"UPDATE chats SET kind=?, groupname=? WHERE id=?", t.KindGroup, groupName, id); err != nil {
			return normalizeErr(err)
		}
	}

	err = tx.Commit()
	return normalizeErr(err)
}

// ChatIsMember checks if the user is a member of the chat.
func (a *adapter) ChatIsMember(ctx context.Context, id int64, uid string) (bool, error) {
	var count int
	err := a.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM participants WHERE chatid=? AND userid=?", id, uid)
	if err != nil {
		return false, normalizeErr(err)
	}
	return count > 0, nil
}

// ChatDelete removes the chat. Memberships and messages go away through
// the cascading foreign keys.
func (a *adapter) ChatDelete(ctx context.Context, id int64) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM chats WHERE id=?", id)
	if err != nil {
		return normalizeErr(err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return t.ErrChatNotFound
	}
	return nil
}

// MessageSave appends a message to its chat. The insert is conditional on
// the author's membership so a non-member append never touches the table.
func (a *adapter) MessageSave(ctx context.Context, msg *t.Message) error {
	res, err := a.db.ExecContext(ctx,
		"INSERT INTO messages(chatid, userid, content, createdat) "+
			"SELECT ?, ?, ?, ? FROM participants WHERE chatid=? AND userid=?",
		msg.ChatId, msg.From, msg.Content, msg.CreatedAt, msg.ChatId, msg.From)
	if err != nil {
		return normalizeErr(err)
	}

	if count, _ := res.RowsAffected(); count == 0 {
		// Either the chat is gone or the author is not a member.
		var exists int
		if err = a.db.GetContext(ctx, &exists,
			"SELECT COUNT(*) FROM chats WHERE id=?", msg.ChatId); err != nil {
			return normalizeErr(err)
		}
		if exists == 0 {
			return t.ErrChatNotFound
		}
		return t.ErrPermissionDenied
	}

	id, err := res.LastInsertId()
	if err != nil {
		return normalizeErr(err)
	}
	msg.Id = id
	return nil
}

// MessageGet fetches a single message by id.
func (a *adapter) MessageGet(ctx context.Context, id int64) (*t.Message, error) {
	var msg t.Message
	err := a.db.GetContext(ctx, &msg,
		"SELECT id, chatid, userid, content, createdat, edited FROM messages WHERE id=?", id)
	if err == sql.ErrNoRows {
		return nil, t.ErrNotFound
	}
	if err != nil {
		return nil, normalizeErr(err)
	}
	return &msg, nil
}

// MessageMutate edits or deletes a message. The ownership check and the
// mutation run in one transaction over a locked row.
func (a *adapter) MessageMutate(ctx context.Context, id int64, requester string, content *string) (*t.Message, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, normalizeErr(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg t.Message
	err = tx.GetContext(ctx, &msg,
		"SELECT id, chatid, userid, content, createdat, edited FROM messages WHERE id=? FOR UPDATE", id)
	if err == sql.ErrNoRows {
		err = t.ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, normalizeErr(err)
	}

	if msg.From != requester {
		err = t.ErrPermissionDenied
		return nil, err
	}

	if content == nil {
		_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE id=?", id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE messages SET content=?, edited=1 WHERE id=?", *content, id)
		msg.Content = *content
		msg.Edited = true
	}
	if err != nil {
		return nil, normalizeErr(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, normalizeErr(err)
	}
	return &msg, nil
}

// Check if MySQL error is Error Code: 1062. Duplicate entry ... for key ...
func isDupe(err error) bool {
	if err == nil {
		return false
	}
	myerr, ok := err.(*ms.MySQLError)
	return ok && myerr.Number == 1062
}

// Check if MySQL error is Error Code 1452: foreign key constraint fails.
func isFkViolation(err error) bool {
	if err == nil {
		return false
	}
	myerr, ok := err.(*ms.MySQLError)
	return ok && myerr.Number == 1452
}

// Check if MySQL error is Error Code 1049: unknown database.
func isMissingDb(err error) bool {
	if err == nil {
		return false
	}
	myerr, ok := err.(*ms.MySQLError)
	return ok && myerr.Number == 1049
}

// Check if MySQL error is Error Code 1146: table doesn't exist.
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	myerr, ok := err.(*ms.MySQLError)
	return ok && myerr.Number == 1146
}

// normalizeErr maps driver and context errors to store errors.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return t.ErrTimeout
	}
	if isDupe(err) {
		return t.ErrDuplicate
	}
	return err
}

func init() {
	store.RegisterAdapter(&adapter{})
}
