/******************************************************************************
 *
 *  Description :
 *
 *    REST API handlers: accounts, chats, message mutations. Mutations
 *    confirmed here are pushed into the hub for broadcasting to live rooms.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/types"
)

// Limit on the request body size, 256KB.
const apiMaxBodySize = 1 << 18

// apiChat is a Chat with kind and viewer-relative name resolved for output.
type apiChat struct {
	*types.Chat
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func newAPIChat(chat *types.Chat, viewer string) *apiChat {
	return &apiChat{
		Chat: chat,
		Kind: chat.Kind.String(),
		Name: chat.DisplayName(viewer),
	}
}

func apiReadBody(wrt http.ResponseWriter, req *http.Request, body interface{}) bool {
	req.Body = http.MaxBytesReader(wrt, req.Body, apiMaxBodySize)
	if err := json.NewDecoder(req.Body).Decode(body); err != nil {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return false
	}
	return true
}

func apiWriteJSON(wrt http.ResponseWriter, code int, body interface{}) {
	wrt.Header().Set("Content-Type", "application/json; charset=utf-8")
	wrt.WriteHeader(code)
	json.NewEncoder(wrt).Encode(body)
}

// apiWriteCtrl sends a {ctrl} message with the HTTP status taken from the
// ctrl code.
func apiWriteCtrl(wrt http.ResponseWriter, msg *ServerComMessage) {
	apiWriteJSON(wrt, msg.Ctrl.Code, msg)
}

func apiWriteError(wrt http.ResponseWriter, err error, chat int64) {
	apiWriteCtrl(wrt, decodeStoreError(err, "", chat, types.TimeNow()))
}

// POST /v0/login {"name": ..., "password": ...}
// Register-or-login: authenticates against existing accounts with the
// name, creates a new account when none of them match the password.
func apiLogin(wrt http.ResponseWriter, req *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	if body.Name == "" || body.Password == "" {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}

	user, err := store.Users.Authenticate(req.Context(), body.Name, body.Password)
	if err == types.ErrUserNotFound {
		user, err = store.Users.Create(req.Context(), body.Name, body.Password)
	}
	if err != nil {
		logs.Warn.Println("api: login failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	apiWriteJSON(wrt, http.StatusOK, user)
}

// GET /v0/users/{user}/chats
// All chats of the user with members and full history.
func apiListChats(wrt http.ResponseWriter, req *http.Request) {
	uid := mux.Vars(req)["user"]
	if !types.IsValidUserId(uid) {
		apiWriteCtrl(wrt, ErrUserNotFound("", 0, types.TimeNow()))
		return
	}

	chats, err := store.Chats.GetAllForUser(req.Context(), uid)
	if err != nil {
		logs.Warn.Println("api: chat list failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	out := make([]*apiChat, len(chats))
	for i := range chats {
		out[i] = newAPIChat(&chats[i], uid)
	}
	apiWriteJSON(wrt, http.StatusOK, out)
}

// POST /v0/chats {"user_a": ..., "user_b": ...}
// Returns the direct chat between the two users, creating it if missing.
// The users may be referenced by id or display name.
func apiCreateDirect(wrt http.ResponseWriter, req *http.Request) {
	var body struct {
		UserA string `json:"user_a"`
		UserB string `json:"user_b"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}

	// An unresolvable token means the caller named a nonexistent party:
	// the request itself is invalid.
	userA, err := store.Users.Resolve(req.Context(), body.UserA)
	if err == types.ErrUserNotFound {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}
	if err != nil {
		apiWriteError(wrt, err, 0)
		return
	}
	userB, err := store.Users.Resolve(req.Context(), body.UserB)
	if err == types.ErrUserNotFound {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}
	if err != nil {
		apiWriteError(wrt, err, 0)
		return
	}

	if userA.Id == userB.Id {
		// No self-chats.
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}

	chat, err := store.Chats.GetOrCreateDirect(req.Context(), userA.Id, userB.Id)
	if err != nil {
		logs.Warn.Println("api: direct chat failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	apiWriteJSON(wrt, http.StatusOK, newAPIChat(chat, userA.Id))
}

// POST /v0/groups {"user": ..., "name": ...}
// Creates a named group chat with the user as the only member.
func apiCreateGroup(wrt http.ResponseWriter, req *http.Request) {
	var body struct {
		User string `json:"user"`
		Name string `json:"name"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}

	user, err := store.Users.Resolve(req.Context(), body.User)
	if err != nil {
		apiWriteError(wrt, err, 0)
		return
	}

	chat, err := store.Chats.CreateGroup(req.Context(), name, user.Id)
	if err != nil {
		logs.Warn.Println("api: group create failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	apiWriteJSON(wrt, http.StatusCreated, newAPIChat(chat, user.Id))
}

// POST /v0/chats/{chat}/members {"user": ..., "members": [...], "group_name": ...}
// Adds users to the chat on behalf of a current member. All member tokens
// are resolved before anything is written: one unknown token fails the
// whole request. A direct chat gains members only together with a group
// name.
func apiAddMembers(wrt http.ResponseWriter, req *http.Request) {
	chat, ok := apiChatID(wrt, req)
	if !ok {
		return
	}

	var body struct {
		User      string   `json:"user"`
		Members   []string `json:"members"`
		GroupName string   `json:"group_name"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	if len(body.Members) == 0 || !types.IsValidUserId(body.User) {
		apiWriteCtrl(wrt, ErrMalformed("", chat, types.TimeNow()))
		return
	}

	member, err := store.Chats.IsMember(req.Context(), chat, body.User)
	if err != nil {
		apiWriteError(wrt, err, chat)
		return
	}
	if !member {
		apiWriteCtrl(wrt, ErrPermissionDenied("", chat, types.TimeNow()))
		return
	}

	uids := make([]string, len(body.Members))
	for i, token := range body.Members {
		user, err := store.Users.Resolve(req.Context(), token)
		if err != nil {
			apiWriteError(wrt, err, chat)
			return
		}
		uids[i] = user.Id
	}

	groupName := strings.TrimSpace(body.GroupName)

	current, err := store.Chats.Get(req.Context(), chat)
	if err != nil {
		apiWriteError(wrt, err, chat)
		return
	}
	if !current.IsGroup() && groupName == "" {
		// Direct chats hold exactly two members.
		apiWriteCtrl(wrt, ErrMalformed("", chat, types.TimeNow()))
		return
	}

	if err := store.Chats.AddMembers(req.Context(), chat, uids, groupName); err != nil {
		logs.Warn.Println("api: add members failed:", err)
		apiWriteError(wrt, err, chat)
		return
	}

	updated, err := store.Chats.Get(req.Context(), chat)
	if err != nil {
		apiWriteError(wrt, err, chat)
		return
	}
	apiWriteJSON(wrt, http.StatusOK, newAPIChat(updated, ""))
}

// PUT /v0/messages/{id} {"user": ..., "content": ...}
// Edits a message. Only the author may edit. The confirmed edit is
// broadcast to the live room, if any.
func apiEditMessage(wrt http.ResponseWriter, req *http.Request) {
	seq, ok := apiMessageID(wrt, req)
	if !ok {
		return
	}

	var body struct {
		User    string `json:"user"`
		Content string `json:"content"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	if strings.TrimSpace(body.Content) == "" || !types.IsValidUserId(body.User) {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}

	msg, err := store.Messages.Edit(req.Context(), seq, body.User, body.Content)
	if err != nil {
		logs.Warn.Println("api: message edit failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	globals.hub.route <- &ServerComMessage{
		Edited: &MsgServerEdited{
			Chat:      msg.ChatId,
			Seq:       msg.Id,
			From:      msg.From,
			Content:   msg.Content,
			Timestamp: types.TimeNow()},
		rcptTo: msg.ChatId}

	apiWriteJSON(wrt, http.StatusOK, msg)
}

// DELETE /v0/messages/{id} {"user": ...}
// Deletes a message. Only the author may delete. The confirmed delete is
// broadcast to the live room, if any.
func apiDeleteMessage(wrt http.ResponseWriter, req *http.Request) {
	seq, ok := apiMessageID(wrt, req)
	if !ok {
		return
	}

	var body struct {
		User string `json:"user"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	if !types.IsValidUserId(body.User) {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return
	}

	msg, err := store.Messages.Delete(req.Context(), seq, body.User)
	if err != nil {
		logs.Warn.Println("api: message delete failed:", err)
		apiWriteError(wrt, err, 0)
		return
	}

	globals.hub.route <- &ServerComMessage{
		Deleted: &MsgServerDeleted{
			Chat:      msg.ChatId,
			Seq:       msg.Id,
			From:      msg.From,
			Timestamp: types.TimeNow()},
		rcptTo: msg.ChatId}

	apiWriteCtrl(wrt, NoErr("", msg.ChatId, types.TimeNow()))
}

// DELETE /v0/chats/{chat} {"user": ...}
// Deletes the whole chat. Restricted to current members. The live room,
// if loaded, is evicted.
func apiDeleteChat(wrt http.ResponseWriter, req *http.Request) {
	chat, ok := apiChatID(wrt, req)
	if !ok {
		return
	}

	var body struct {
		User string `json:"user"`
	}
	if !apiReadBody(wrt, req, &body) {
		return
	}
	if !types.IsValidUserId(body.User) {
		apiWriteCtrl(wrt, ErrMalformed("", chat, types.TimeNow()))
		return
	}

	member, err := store.Chats.IsMember(req.Context(), chat, body.User)
	if err != nil {
		apiWriteError(wrt, err, chat)
		return
	}
	if !member {
		apiWriteCtrl(wrt, ErrPermissionDenied("", chat, types.TimeNow()))
		return
	}

	if err := store.Chats.Delete(req.Context(), chat); err != nil {
		logs.Warn.Println("api: chat delete failed:", err)
		apiWriteError(wrt, err, chat)
		return
	}

	// Evict the live room.
	globals.hub.unreg <- &roomUnreg{chat: chat, del: true}

	apiWriteCtrl(wrt, NoErr("", chat, types.TimeNow()))
}

func apiChatID(wrt http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(req)["chat"], 10, 64)
	if err != nil || id == 0 {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return 0, false
	}
	return id, true
}

func apiMessageID(wrt http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	if err != nil || id == 0 {
		apiWriteCtrl(wrt, ErrMalformed("", 0, types.TimeNow()))
		return 0, false
	}
	return id, true
}

// setupAPIRoutes attaches the REST handlers to the router.
func setupAPIRoutes(r *mux.Router) {
	v0 := r.PathPrefix("/v0").Subrouter()
	v0.HandleFunc("/login", apiLogin).Methods(http.MethodPost)
	v0.HandleFunc("/users/{user}/chats", apiListChats).Methods(http.MethodGet)
	v0.HandleFunc("/chats", apiCreateDirect).Methods(http.MethodPost)
	v0.HandleFunc("/groups", apiCreateGroup).Methods(http.MethodPost)
	v0.HandleFunc("/chats/{chat}/members", apiAddMembers).Methods(http.MethodPost)
	v0.HandleFunc("/chats/{chat}", apiDeleteChat).Methods(http.MethodDelete)
	v0.HandleFunc("/messages/{id}", apiEditMessage).Methods(http.MethodPut)
	v0.HandleFunc("/messages/{id}", apiDeleteMessage).Methods(http.MethodDelete)
}
