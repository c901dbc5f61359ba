/******************************************************************************
 *
 *  Description :
 *
 *  Handling of user sessions/connections. One user may have multiple sessions.
 *  Each session may be attached to multiple rooms.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/types"
)

// Wire transport.
const (
	NONE = iota
	WEBSOCK
)

// Majority of sessions are idle most of the time: disconnect after this
// period of silence.
const idleSessionTimeout = time.Second * 55

var minSupportedVersionValue = parseVersion(minSupportedVersion)

// Session represents a single WS connection. A user may have multiple
// sessions.
type Session struct {
	// protocol - NONE (unset) or WEBSOCK.
	proto int

	// Websocket. Set only for websocket sessions.
	ws *websocket.Conn

	// IP address of the client.
	remoteAddr string

	// User agent, a string provided by an authenticated client in {hi} packet.
	userAgent string

	// Protocol version of the client: ((major & 0xff) << 8) | (minor & 0xff).
	ver int

	// Id of the authenticated user or empty string.
	uid string

	// Display name of the authenticated user, cached at login.
	uname string

	// Time when the session received any packet from client.
	lastAction time.Time

	// Outbound messages, buffered.
	// The content must be serialized in format suitable for the session.
	send chan interface{}

	// Channel for shutting down the session, buffer 1.
	// Content in the same format as for 'send'.
	stop chan interface{}

	// Map of room subscriptions, indexed by chat id.
	// Don't access directly. Use getters/setters.
	subs map[int64]*Subscription
	// Mutex for subs access: both room goroutines and network goroutines
	// access subs concurrently.
	subsLock sync.RWMutex

	// Session ID.
	sid string
}

// Subscription is a mapper of sessions to rooms.
type Subscription struct {
	// Channel to communicate with the room, copy of Room.broadcast.
	broadcast chan<- *ServerComMessage

	// Session sends a signal to the room when this session is unsubscribed.
	// This is a copy of Room.unreg.
	done chan<- *sessionLeave
}

func (s *Session) addSub(chat int64, sub *Subscription) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	s.subs[chat] = sub
}

func (s *Session) getSub(chat int64) *Subscription {
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()

	return s.subs[chat]
}

func (s *Session) delSub(chat int64) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	delete(s.subs, chat)
}

func (s *Session) unsubAll() {
	s.subsLock.RLock()
	defer s.subsLock.RUnlock()

	for _, sub := range s.subs {
		// sub.done is the same as room.unreg
		sub.done <- &sessionLeave{sess: s}
	}
}

// queueOut attempts to send a ServerComMessage to a session; if the send
// buffer is full, timeout is 50 usec.
func (s *Session) queueOut(msg *ServerComMessage) bool {
	if s == nil {
		return true
	}

	select {
	case s.send <- msg:
	case <-time.After(time.Microsecond * 50):
		logs.Err.Println("s.queueOut: timeout", s.sid)
		return false
	}
	return true
}

// queueOutBytes attempts to send a ServerComMessage already serialized
// to []byte. If the send buffer is full, timeout is 50 usec.
func (s *Session) queueOutBytes(data []byte) bool {
	if s == nil {
		return true
	}

	select {
	case s.send <- data:
	case <-time.After(time.Microsecond * 50):
		logs.Err.Println("s.queueOutBytes: timeout", s.sid)
		return false
	}
	return true
}

func (s *Session) cleanUp() {
	globals.sessionStore.Delete(s)
	s.unsubAll()
}

// Message received, convert bytes to ClientComMessage and dispatch.
func (s *Session) dispatchRaw(raw []byte) {
	var msg ClientComMessage

	toLog := raw
	truncated := ""
	if len(raw) > 512 {
		toLog = raw[:512]
		truncated = "<...>"
	}
	logs.Info.Printf("in: '%s%s' ip='%s' sid='%s' uid='%s'", toLog, truncated, s.remoteAddr, s.sid, s.uid)

	if err := json.Unmarshal(raw, &msg); err != nil {
		// Malformed message
		logs.Warn.Println("s.dispatch", err, s.sid)
		s.queueOut(ErrMalformed("", 0, types.TimeNow()))
		return
	}

	s.dispatch(&msg)
}

func (s *Session) dispatch(msg *ClientComMessage) {
	s.lastAction = types.TimeNow()
	msg.timestamp = s.lastAction
	msg.asUser = s.uid
	msg.sess = s

	var handler func(*ClientComMessage)

	// Check if s.ver is defined.
	checkVers := func(handler func(*ClientComMessage)) func(*ClientComMessage) {
		return func(m *ClientComMessage) {
			if s.ver == 0 {
				s.queueOut(ErrCommandOutOfSequence(m.id, m.chat, m.timestamp))
				return
			}
			handler(m)
		}
	}

	// Check if user is logged in.
	checkUser := func(handler func(*ClientComMessage)) func(*ClientComMessage) {
		return func(m *ClientComMessage) {
			if m.asUser == "" {
				s.queueOut(ErrAuthRequired(m.id, m.chat, m.timestamp))
				return
			}
			handler(m)
		}
	}

	switch {
	case msg.Pub != nil:
		handler = checkVers(checkUser(s.publish))
		msg.id = msg.Pub.Id
		msg.chat = msg.Pub.Chat

	case msg.Sub != nil:
		handler = checkVers(checkUser(s.subscribe))
		msg.id = msg.Sub.Id
		msg.chat = msg.Sub.Chat

	case msg.Leave != nil:
		handler = checkVers(checkUser(s.leave))
		msg.id = msg.Leave.Id
		msg.chat = msg.Leave.Chat

	case msg.Edit != nil:
		handler = checkVers(checkUser(s.editRelay))
		msg.id = msg.Edit.Id
		msg.chat = msg.Edit.Chat

	case msg.Del != nil:
		handler = checkVers(checkUser(s.delRelay))
		msg.id = msg.Del.Id
		msg.chat = msg.Del.Chat

	case msg.Hi != nil:
		handler = s.hello
		msg.id = msg.Hi.Id

	case msg.Login != nil:
		handler = checkVers(s.login)
		msg.id = msg.Login.Id

	default:
		// Unknown message
		s.queueOut(ErrMalformed("", 0, msg.timestamp))
		logs.Warn.Println("s.dispatch: unknown message", s.sid)
		return
	}

	handler(msg)
}

// Handshake {hi}.
func (s *Session) hello(msg *ClientComMessage) {
	if s.ver == 0 {
		s.ver = parseVersion(msg.Hi.Version)
		if s.ver == 0 {
			s.queueOut(ErrMalformed(msg.id, 0, msg.timestamp))
			return
		}
		// Check version compatibility.
		if versionCompare(s.ver, minSupportedVersionValue) < 0 {
			s.ver = 0
			s.queueOut(ErrMalformed(msg.id, 0, msg.timestamp))
			return
		}
	} else if msg.Hi.Version != "" && parseVersion(msg.Hi.Version) != s.ver {
		// Version cannot be changed mid-session.
		s.queueOut(ErrCommandOutOfSequence(msg.id, 0, msg.timestamp))
		return
	}

	s.userAgent = msg.Hi.UserAgent

	s.queueOut(NoErrCreatedParams(msg.id, msg.timestamp, map[string]interface{}{
		"ver":   currentVersion,
		"build": store.GetAdapterName() + ":" + buildstamp}))
}

// Authenticate {login}. Only the "basic" scheme with a "name:password"
// secret is supported.
func (s *Session) login(msg *ClientComMessage) {
	if s.uid != "" {
		s.queueOut(ErrAlreadyAuthenticated(msg.id, 0, msg.timestamp))
		return
	}

	if msg.Login.Scheme != "" && msg.Login.Scheme != "basic" {
		logs.Warn.Println("s.login: unknown auth scheme", msg.Login.Scheme, s.sid)
		s.queueOut(ErrMalformed(msg.id, 0, msg.timestamp))
		return
	}

	name, password, ok := strings.Cut(msg.Login.Secret, ":")
	if !ok || name == "" {
		s.queueOut(ErrMalformed(msg.id, 0, msg.timestamp))
		return
	}

	user, err := store.Users.Authenticate(nil, name, password)
	if err == types.ErrUserNotFound {
		s.queueOut(ErrAuthFailed(msg.id, 0, msg.timestamp))
		return
	}
	if err != nil {
		logs.Warn.Println("s.login:", err, s.sid)
		s.queueOut(decodeStoreError(err, msg.id, 0, msg.timestamp))
		return
	}

	s.uid = user.Id
	s.uname = user.Name

	s.queueOut(NoErrParams(msg.id, 0, msg.timestamp, map[string]interface{}{
		"user": user.Id,
		"name": user.Name}))
}

// Request to attach the session to a room {sub}.
func (s *Session) subscribe(msg *ClientComMessage) {
	if msg.chat == 0 {
		s.queueOut(ErrMalformed(msg.id, 0, msg.timestamp))
		return
	}

	if sub := s.getSub(msg.chat); sub != nil {
		logs.Warn.Println("s.subscribe: already subscribed to chat", msg.chat, "sid=", s.sid)
		s.queueOut(InfoAlreadySubscribed(msg.id, msg.chat, msg.timestamp))
		return
	}

	// Hub will send Ctrl success/failure packets back to the session.
	globals.hub.join <- &sessionJoin{pkt: msg, sess: s}
}

// Detach the session from a room {leave}.
func (s *Session) leave(msg *ClientComMessage) {
	if sub := s.getSub(msg.chat); sub != nil {
		// Unlink from the room, the room will send a reply.
		sub.done <- &sessionLeave{pkt: msg, sess: s}
	} else {
		// Session is not attached to the room, wants to leave - fine, no change.
		s.queueOut(InfoNotJoined(msg.id, msg.chat, msg.timestamp))
	}
}

// Broadcast a message to all room subscribers {pub}.
func (s *Session) publish(msg *ClientComMessage) {
	if strings.TrimSpace(msg.Pub.Content) == "" {
		// Nothing to publish.
		s.queueOut(ErrMalformed(msg.id, msg.chat, msg.timestamp))
		return
	}

	sub := s.getSub(msg.chat)
	if sub == nil {
		// Publish request received without attaching to the room first.
		s.queueOut(ErrAttachFirst(msg.id, msg.chat, msg.timestamp))
		return
	}

	data := &ServerComMessage{
		Data: &MsgServerData{
			Chat:      msg.chat,
			From:      msg.asUser,
			Content:   msg.Pub.Content,
			Timestamp: msg.timestamp},
		rcptTo:    msg.chat,
		id:        msg.id,
		timestamp: msg.timestamp,
		sess:      s}

	// This is a post to a subscribed room. The message is sent to the room only.
	sub.broadcast <- data
}

// Relay of an {edit} confirmed through the API: verify against the store
// and re-broadcast. The store roundtrip runs on the shared task pool to
// keep the session's read loop free.
func (s *Session) editRelay(msg *ClientComMessage) {
	if s.getSub(msg.chat) == nil {
		s.queueOut(ErrAttachFirst(msg.id, msg.chat, msg.timestamp))
		return
	}

	edit := msg.Edit
	globals.taskPool.Schedule(func() {
		saved, err := store.Messages.Get(nil, edit.Seq)
		if err != nil {
			s.queueOut(decodeStoreError(err, msg.id, msg.chat, types.TimeNow()))
			return
		}
		if saved.ChatId != msg.chat || !saved.Edited || saved.Content != edit.Content {
			// The relay does not match the stored message: the edit was
			// not applied through the API.
			s.queueOut(ErrPermissionDenied(msg.id, msg.chat, types.TimeNow()))
			return
		}

		globals.hub.route <- &ServerComMessage{
			Edited: &MsgServerEdited{
				Chat:      msg.chat,
				Seq:       saved.Id,
				From:      saved.From,
				Content:   saved.Content,
				Timestamp: msg.timestamp},
			rcptTo:    msg.chat,
			id:        msg.id,
			timestamp: msg.timestamp}

		s.queueOut(NoErr(msg.id, msg.chat, msg.timestamp))
	})
}

// Relay of a {del} confirmed through the API: the message must be gone
// from the store before the relay is re-broadcast.
func (s *Session) delRelay(msg *ClientComMessage) {
	if s.getSub(msg.chat) == nil {
		s.queueOut(ErrAttachFirst(msg.id, msg.chat, msg.timestamp))
		return
	}

	del := msg.Del
	asUser := msg.asUser
	globals.taskPool.Schedule(func() {
		_, err := store.Messages.Get(nil, del.Seq)
		if err == nil {
			// Still present: the delete was not applied through the API.
			s.queueOut(ErrPermissionDenied(msg.id, msg.chat, types.TimeNow()))
			return
		}
		if err != types.ErrNotFound {
			s.queueOut(decodeStoreError(err, msg.id, msg.chat, types.TimeNow()))
			return
		}

		globals.hub.route <- &ServerComMessage{
			Deleted: &MsgServerDeleted{
				Chat:      msg.chat,
				Seq:       del.Seq,
				From:      asUser,
				Timestamp: msg.timestamp},
			rcptTo:    msg.chat,
			id:        msg.id,
			timestamp: msg.timestamp}

		s.queueOut(NoErr(msg.id, msg.chat, msg.timestamp))
	})
}

func (s *Session) serialize(msg *ServerComMessage) interface{} {
	out, _ := json.Marshal(msg)
	return out
}
