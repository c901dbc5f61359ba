package main

/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures
 *
 *****************************************************************************/

import (
	"net/http"
	"time"

	"github.com/parley-im/parley/server/store/types"
)

// MsgClientHi is a handshake {hi} message.
type MsgClientHi struct {
	// Message Id
	Id string `json:"id,omitempty"`
	// User agent
	UserAgent string `json:"ua,omitempty"`
	// Protocol version, i.e. "0.13"
	Version string `json:"ver,omitempty"`
}

// MsgClientLogin is a login {login} message.
type MsgClientLogin struct {
	// Message Id
	Id string `json:"id,omitempty"`
	// Authentication scheme. Only "basic" is supported.
	Scheme string `json:"scheme,omitempty"`
	// Shared secret, "name:password".
	Secret string `json:"secret"`
}

// MsgClientSub is a subscription request {sub} message: attach the session
// to a chat to receive its broadcasts.
type MsgClientSub struct {
	Id   string `json:"id,omitempty"`
	Chat int64  `json:"chat"`
}

// MsgClientLeave is a request to unsubscribe {leave} message.
type MsgClientLeave struct {
	Id   string `json:"id,omitempty"`
	Chat int64  `json:"chat"`
}

// MsgClientPub is a client message to a chat {pub}.
type MsgClientPub struct {
	Id      string `json:"id,omitempty"`
	Chat    int64  `json:"chat"`
	Content string `json:"content"`
}

// MsgClientEdit is an edit relay {edit}: notification that a message was
// changed through the API.
type MsgClientEdit struct {
	Id      string `json:"id,omitempty"`
	Chat    int64  `json:"chat"`
	Seq     int64  `json:"seq"`
	Content string `json:"content"`
}

// MsgClientDel is a delete relay {del}: notification that a message was
// removed through the API.
type MsgClientDel struct {
	Id   string `json:"id,omitempty"`
	Chat int64  `json:"chat"`
	Seq  int64  `json:"seq"`
}

// ClientComMessage is a wrapper for client messages.
type ClientComMessage struct {
	Hi    *MsgClientHi    `json:"hi"`
	Login *MsgClientLogin `json:"login"`
	Sub   *MsgClientSub   `json:"sub"`
	Leave *MsgClientLeave `json:"leave"`
	Pub   *MsgClientPub   `json:"pub"`
	Edit  *MsgClientEdit  `json:"edit"`
	Del   *MsgClientDel   `json:"del"`

	// Internal fields, routed only within the server.

	// Message Id denormalized
	id string
	// Un-routable (original) chat id denormalized from XXX.Chat.
	chat int64
	// Sender's authenticated user id.
	asUser string
	// Timestamp when the message was received by the server.
	timestamp time.Time
	// Originating session to send an acknowledgement to.
	sess *Session
}

// MsgServerCtrl is a server control message {ctrl}.
type MsgServerCtrl struct {
	Id   string `json:"id,omitempty"`
	Chat int64  `json:"chat,omitempty"`

	Params    interface{} `json:"params,omitempty"`
	Code      int         `json:"code"`
	Text      string      `json:"text,omitempty"`
	Timestamp time.Time   `json:"ts"`
}

// MsgServerData is a server {msg} message: a chat message delivered to
// attached sessions.
type MsgServerData struct {
	Chat int64 `json:"chat"`
	// Store-assigned sequential id of the message within the chat.
	Seq int64 `json:"seq"`
	// Id of the user who originated the message.
	From string `json:"from"`
	// Display name of the originator, resolved by the chat.
	FromName  string    `json:"from_name,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// MsgServerEdited is a server {edited} message: content of an existing
// message was replaced.
type MsgServerEdited struct {
	Chat      int64     `json:"chat"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// MsgServerDeleted is a server {deleted} message: an existing message was
// removed.
type MsgServerDeleted struct {
	Chat      int64     `json:"chat"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"ts"`
}

// ServerComMessage is a wrapper for server-side messages.
type ServerComMessage struct {
	Ctrl    *MsgServerCtrl    `json:"ctrl,omitempty"`
	Data    *MsgServerData    `json:"msg,omitempty"`
	Edited  *MsgServerEdited  `json:"edited,omitempty"`
	Deleted *MsgServerDeleted `json:"deleted,omitempty"`

	// Internal fields.

	// Id of the originating message, denormalized.
	id string
	// Chat the message is routed to.
	rcptTo int64
	// Timestamp for consistency of timestamps in {ctrl} messages.
	timestamp time.Time
	// Originating session.
	sess *Session
}

// Generators of server-side error messages {ctrl}.

// NoErr indicates successful completion (200).
func NoErr(id string, chat int64, ts time.Time) *ServerComMessage {
	return NoErrParams(id, chat, ts, nil)
}

// NoErrParams indicates successful completion with parameters (200).
func NoErrParams(id string, chat int64, ts time.Time, params interface{}) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusOK, // 200
		Text:      "ok",
		Chat:      chat,
		Params:    params,
		Timestamp: ts}}
}

// NoErrCreated indicated successful creation of an object (201).
func NoErrCreated(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusCreated, // 201
		Text:      "created",
		Chat:      chat,
		Timestamp: ts}}
}

// NoErrCreatedParams indicates successful creation of an object with
// parameters (201).
func NoErrCreatedParams(id string, ts time.Time, params interface{}) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusCreated, // 201
		Text:      "created",
		Params:    params,
		Timestamp: ts}}
}

// NoErrAccepted indicates the request was accepted but not perocessed yet (202).
func NoErrAccepted(id string, chat int64, ts time.Time) *ServerComMessage {
	return NoErrAcceptedParams(id, chat, ts, nil)
}

// NoErrAcceptedParams indicates the request was accepted but not processed yet,
// with parameters (202).
func NoErrAcceptedParams(id string, chat int64, ts time.Time, params interface{}) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusAccepted, // 202
		Text:      "accepted",
		Chat:      chat,
		Params:    params,
		Timestamp: ts}}
}

// NoErrShutdown means the server is shutting down (205).
func NoErrShutdown(ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Code:      http.StatusResetContent, // 205
		Text:      "server shutdown",
		Timestamp: ts}}
}

// InfoAlreadySubscribed request to subscribe was ignored because the session
// is already subscribed (304).
func InfoAlreadySubscribed(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotModified, // 304
		Text:      "already subscribed",
		Chat:      chat,
		Timestamp: ts}}
}

// InfoNotJoined request to leave was ignored because the session was not
// subscribed (304).
func InfoNotJoined(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotModified, // 304
		Text:      "not joined",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrMalformed request malformed (400).
func ErrMalformed(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusBadRequest, // 400
		Text:      "malformed",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrAuthRequired authentication required - user must authenticate first (401).
func ErrAuthRequired(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusUnauthorized, // 401
		Text:      "authentication required",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrAuthFailed authentication failed (401).
func ErrAuthFailed(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusUnauthorized, // 401
		Text:      "authentication failed",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrAlreadyAuthenticated invalid attempt to authenticate an authenticated
// session (400).
func ErrAlreadyAuthenticated(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusBadRequest, // 400
		Text:      "already authenticated",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrPermissionDenied user is authenticated but operation is not permitted (403).
func ErrPermissionDenied(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusForbidden, // 403
		Text:      "permission denied",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrChatNotFound chat is not found (404).
func ErrChatNotFound(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotFound, // 404
		Text:      "chat not found",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrUserNotFound user is not found (404).
func ErrUserNotFound(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotFound, // 404
		Text:      "user not found",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrNotFound is an error for missing objects other than user or chat (404).
func ErrNotFound(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusNotFound, // 404
		Text:      "not found",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrAttachFirst must attach to chat first (409).
func ErrAttachFirst(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusConflict, // 409
		Text:      "must attach first",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrCommandOutOfSequence invalid sequence of comments, i.e. {hi} is not
// the first message (409).
func ErrCommandOutOfSequence(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusConflict, // 409
		Text:      "command out of sequence",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrUnknown database or other server error (500).
func ErrUnknown(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusInternalServerError, // 500
		Text:      "internal error",
		Chat:      chat,
		Timestamp: ts}}
}

// ErrServiceUnavailable server overloaded (503).
func ErrServiceUnavailable(id string, chat int64, ts time.Time) *ServerComMessage {
	return &ServerComMessage{Ctrl: &MsgServerCtrl{
		Id:        id,
		Code:      http.StatusServiceUnavailable, // 503
		Text:      "service unavailable",
		Chat:      chat,
		Timestamp: ts}}
}

// decodeStoreError converts storage error to a {ctrl} message.
func decodeStoreError(err error, id string, chat int64, timestamp time.Time) *ServerComMessage {
	var errmsg *ServerComMessage

	if err == nil {
		errmsg = NoErr(id, chat, timestamp)
	} else if storeErr, ok := err.(types.StoreError); !ok {
		errmsg = ErrUnknown(id, chat, timestamp)
	} else {
		switch storeErr {
		case types.ErrMalformed:
			errmsg = ErrMalformed(id, chat, timestamp)
		case types.ErrFailed:
			errmsg = ErrAuthFailed(id, chat, timestamp)
		case types.ErrPermissionDenied:
			errmsg = ErrPermissionDenied(id, chat, timestamp)
		case types.ErrDuplicate:
			errmsg = ErrMalformed(id, chat, timestamp)
		case types.ErrNotFound:
			errmsg = ErrNotFound(id, chat, timestamp)
		case types.ErrUserNotFound:
			errmsg = ErrUserNotFound(id, chat, timestamp)
		case types.ErrChatNotFound:
			errmsg = ErrChatNotFound(id, chat, timestamp)
		case types.ErrTimeout:
			errmsg = ErrServiceUnavailable(id, chat, timestamp)
		default:
			errmsg = ErrUnknown(id, chat, timestamp)
		}
	}

	return errmsg
}
