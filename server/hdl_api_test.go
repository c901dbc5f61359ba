package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"

	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/mock_store"
	"github.com/parley-im/parley/server/store/types"
)

func newTestAPIRouter() *mux.Router {
	router := mux.NewRouter()
	setupAPIRoutes(router)
	return router
}

// Installs a hub with buffered channels so API handlers can push
// broadcasts without a running hub goroutine.
func installTestHub() (*Hub, func()) {
	saved := globals.hub
	hub := &Hub{
		route: make(chan *ServerComMessage, 16),
		unreg: make(chan *roomUnreg, 16),
	}
	globals.hub = hub
	return hub, func() { globals.hub = saved }
}

func callAPI(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAPILoginRegistersNewUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	store.Users = um
	defer func() {
		store.Users = store.UsersObjMapper{}
		ctrl.Finish()
	}()

	// No existing account matches the password: a new account is created.
	um.EXPECT().Authenticate(gomock.Any(), "carol", "secret").
		Return(nil, types.ErrUserNotFound)
	um.EXPECT().Create(gomock.Any(), "carol", "secret").
		Return(&types.User{Id: "Ab3dE", Name: "carol"}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/login",
		`{"name": "carol", "password": "secret"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}
	var user types.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatal("failed to parse response:", err)
	}
	if user.Id != "Ab3dE" {
		t.Errorf("user_id: expected 'Ab3dE', got '%s'", user.Id)
	}
}

func TestAPILoginMissingPassword(t *testing.T) {
	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/login",
		`{"name": "carol"}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPICreateDirectSelfChat(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	store.Users = um
	defer func() {
		store.Users = store.UsersObjMapper{}
		ctrl.Finish()
	}()

	// Id and display name resolve to the same account.
	um.EXPECT().Resolve(gomock.Any(), "alice").
		Return(&types.User{Id: "alice", Name: "Alice"}, nil)
	um.EXPECT().Resolve(gomock.Any(), "Alice").
		Return(&types.User{Id: "alice", Name: "Alice"}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats",
		`{"user_a": "alice", "user_b": "Alice"}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPICreateDirectUnknownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	store.Users = um
	defer func() {
		store.Users = store.UsersObjMapper{}
		ctrl.Finish()
	}()

	// Naming a nonexistent party is a bad request, not a missing resource.
	um.EXPECT().Resolve(gomock.Any(), "alice").
		Return(&types.User{Id: "alice", Name: "Alice"}, nil)
	um.EXPECT().Resolve(gomock.Any(), "ghost").
		Return(nil, types.ErrUserNotFound)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats",
		`{"user_a": "alice", "user_b": "ghost"}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPICreateDirect(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	um.EXPECT().Resolve(gomock.Any(), "alice").
		Return(&types.User{Id: "alice", Name: "Alice"}, nil)
	um.EXPECT().Resolve(gomock.Any(), "Bob").
		Return(&types.User{Id: "bobby", Name: "Bob"}, nil)
	cm.EXPECT().GetOrCreateDirect(gomock.Any(), "alice", "bobby").
		Return(&types.Chat{
			Id:      101,
			Kind:    types.KindDirect,
			PairKey: types.PairKey("alice", "bobby"),
			Members: []types.User{
				{Id: "alice", Name: "Alice"},
				{Id: "bobby", Name: "Bob"}}}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats",
		`{"user_a": "alice", "user_b": "Bob"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}
	var chat struct {
		ChatId int64  `json:"chat_id"`
		Kind   string `json:"kind"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatal("failed to parse response:", err)
	}
	if chat.ChatId != 101 {
		t.Errorf("chat_id: expected 101, got %d", chat.ChatId)
	}
	if chat.Kind != "direct" {
		t.Errorf("kind: expected 'direct', got '%s'", chat.Kind)
	}
	// Chat name is relative to the requester.
	if chat.Name != "Bob" {
		t.Errorf("name: expected 'Bob', got '%s'", chat.Name)
	}
}

func TestAPIAddMembersUnknownMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	// One unknown token fails the whole request before any write.
	cm.EXPECT().IsMember(gomock.Any(), int64(101), "alice").Return(true, nil)
	um.EXPECT().Resolve(gomock.Any(), "carol").
		Return(&types.User{Id: "carol", Name: "Carol"}, nil)
	um.EXPECT().Resolve(gomock.Any(), "ghost").
		Return(nil, types.ErrUserNotFound)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"user": "alice", "members": ["carol", "ghost"], "group_name": "friends"}`)

	if resp.Code != http.StatusNotFound {
		t.Errorf("status: expected 404, got %d", resp.Code)
	}
}

func TestAPIAddMembersRequesterNotMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	// An outsider cannot add members, not even themselves. No tokens are
	// resolved and nothing is written.
	cm.EXPECT().IsMember(gomock.Any(), int64(101), "mallo").Return(false, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"user": "mallo", "members": ["mallo"], "group_name": "friends"}`)

	if resp.Code != http.StatusForbidden {
		t.Errorf("status: expected 403, got %d", resp.Code)
	}
}

func TestAPIAddMembersMissingRequester(t *testing.T) {
	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"members": ["carol"], "group_name": "friends"}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPIAddMembersDirectNeedsGroupName(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	cm.EXPECT().IsMember(gomock.Any(), int64(101), "alice").Return(true, nil)
	um.EXPECT().Resolve(gomock.Any(), "carol").
		Return(&types.User{Id: "carol", Name: "Carol"}, nil)
	cm.EXPECT().Get(gomock.Any(), int64(101)).
		Return(&types.Chat{Id: 101, Kind: types.KindDirect}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"user": "alice", "members": ["carol"]}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPIAddMembersBlankGroupName(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	// A whitespace-only group name does not count as a name: the direct
	// chat is not promoted and gains no members.
	cm.EXPECT().IsMember(gomock.Any(), int64(101), "alice").Return(true, nil)
	um.EXPECT().Resolve(gomock.Any(), "carol").
		Return(&types.User{Id: "carol", Name: "Carol"}, nil)
	cm.EXPECT().Get(gomock.Any(), int64(101)).
		Return(&types.Chat{Id: 101, Kind: types.KindDirect}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"user": "alice", "members": ["carol"], "group_name": "   "}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
}

func TestAPIAddMembersConvertsDirectToGroup(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Users = um
	store.Chats = cm
	defer func() {
		store.Users = store.UsersObjMapper{}
		store.Chats = store.ChatsObjMapper{}
		ctrl.Finish()
	}()

	cm.EXPECT().IsMember(gomock.Any(), int64(101), "alice").Return(true, nil)
	um.EXPECT().Resolve(gomock.Any(), "carol").
		Return(&types.User{Id: "carol", Name: "Carol"}, nil)
	cm.EXPECT().Get(gomock.Any(), int64(101)).
		Return(&types.Chat{Id: 101, Kind: types.KindDirect}, nil)
	// The group name reaches the store trimmed.
	cm.EXPECT().AddMembers(gomock.Any(), int64(101), []string{"carol"}, "friends").
		Return(nil)
	cm.EXPECT().Get(gomock.Any(), int64(101)).
		Return(&types.Chat{Id: 101, Kind: types.KindGroup, GroupName: "friends"}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPost, "/v0/chats/101/members",
		`{"user": "alice", "members": ["carol"], "group_name": " friends "}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}
	var chat struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatal("failed to parse response:", err)
	}
	if chat.Kind != "group" {
		t.Errorf("kind: expected 'group', got '%s'", chat.Kind)
	}
	if chat.Name != "friends" {
		t.Errorf("name: expected 'friends', got '%s'", chat.Name)
	}
}

func TestAPIEditMessageForbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	mm.EXPECT().Edit(gomock.Any(), int64(7), "mallo", "hacked").
		Return(nil, types.ErrPermissionDenied)

	resp := callAPI(newTestAPIRouter(), http.MethodPut, "/v0/messages/7",
		`{"user": "mallo", "content": "hacked"}`)

	if resp.Code != http.StatusForbidden {
		t.Errorf("status: expected 403, got %d", resp.Code)
	}
	if len(hub.route) != 0 {
		t.Error("rejected edit must not be broadcast")
	}
}

func TestAPIEditMessageBlankContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	// Whitespace-only replacement content is rejected before the store is
	// touched.
	resp := callAPI(newTestAPIRouter(), http.MethodPut, "/v0/messages/7",
		`{"user": "alice", "content": "   "}`)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", resp.Code)
	}
	if len(hub.route) != 0 {
		t.Error("rejected edit must not be broadcast")
	}
}

func TestAPIEditMessageBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	mm.EXPECT().Edit(gomock.Any(), int64(7), "alice", "updated text").
		Return(&types.Message{
			Id:      7,
			ChatId:  101,
			From:    "alice",
			Content: "updated text",
			Edited:  true}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodPut, "/v0/messages/7",
		`{"user": "alice", "content": "updated text"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}

	if len(hub.route) != 1 {
		t.Fatalf("expected 1 routed message, got %d", len(hub.route))
	}
	routed := <-hub.route
	if routed.Edited == nil {
		t.Fatal("expected an edited message")
	}
	if routed.Edited.Seq != 7 || routed.Edited.Chat != 101 {
		t.Errorf("edited message: expected seq 7 chat 101, got %+v", routed.Edited)
	}
	if routed.rcptTo != 101 {
		t.Errorf("rcptTo: expected 101, got %d", routed.rcptTo)
	}
}

func TestAPIDeleteMessageBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	mm.EXPECT().Delete(gomock.Any(), int64(7), "alice").
		Return(&types.Message{Id: 7, ChatId: 101, From: "alice"}, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodDelete, "/v0/messages/7",
		`{"user": "alice"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}

	if len(hub.route) != 1 {
		t.Fatalf("expected 1 routed message, got %d", len(hub.route))
	}
	routed := <-hub.route
	if routed.Deleted == nil {
		t.Fatal("expected a deleted message")
	}
	if routed.Deleted.Seq != 7 {
		t.Errorf("deleted seq: expected 7, got %d", routed.Deleted.Seq)
	}
}

func TestAPIDeleteChatNotMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Chats = cm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Chats = store.ChatsObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	cm.EXPECT().IsMember(gomock.Any(), int64(101), "mallo").Return(false, nil)

	resp := callAPI(newTestAPIRouter(), http.MethodDelete, "/v0/chats/101",
		`{"user": "mallo"}`)

	if resp.Code != http.StatusForbidden {
		t.Errorf("status: expected 403, got %d", resp.Code)
	}
	if len(hub.unreg) != 0 {
		t.Error("rejected delete must not evict the room")
	}
}

func TestAPIDeleteChatEvictsRoom(t *testing.T) {
	ctrl := gomock.NewController(t)
	cm := mock_store.NewMockChatsObjMapperInterface(ctrl)
	store.Chats = cm
	hub, restoreHub := installTestHub()
	defer func() {
		store.Chats = store.ChatsObjMapper{}
		restoreHub()
		ctrl.Finish()
	}()

	cm.EXPECT().IsMember(gomock.Any(), int64(101), "alice").Return(true, nil)
	cm.EXPECT().Delete(gomock.Any(), int64(101)).Return(nil)

	resp := callAPI(newTestAPIRouter(), http.MethodDelete, "/v0/chats/101",
		`{"user": "alice"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", resp.Code)
	}

	if len(hub.unreg) != 1 {
		t.Fatalf("expected 1 unreg request, got %d", len(hub.unreg))
	}
	unreg := <-hub.unreg
	if unreg.chat != 101 || !unreg.del {
		t.Errorf("unreg: expected chat 101 del=true, got %+v", unreg)
	}
}

func TestAPIListChatsInvalidUser(t *testing.T) {
	resp := callAPI(newTestAPIRouter(), http.MethodGet, "/v0/users/not-a-valid-id/chats", "")

	if resp.Code != http.StatusNotFound {
		t.Errorf("status: expected 404, got %d", resp.Code)
	}
}
