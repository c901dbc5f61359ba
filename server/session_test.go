package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/parley-im/parley/server/concurrency"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/mock_store"
	"github.com/parley-im/parley/server/store/types"
)

func verifyResponseCodes(r *Responses, codes []int, t *testing.T) {
	if len(r.messages) != len(codes) {
		t.Errorf("responses: expected %d, received %d.", len(codes), len(r.messages))
	}
	for i := 0; i < len(codes); i++ {
		resp := r.messages[i].(*ServerComMessage)
		if resp == nil {
			t.Fatalf("Response %d must be ServerComMessage", i)
		}
		if resp.Ctrl == nil {
			t.Fatalf("Response %d must contain a ctrl message.", i)
		}
		if resp.Ctrl.Code != codes[i] {
			t.Errorf("Response code: expected %d, got %d", codes[i], resp.Ctrl.Code)
		}
	}
}

// Reads one message from the session's send queue. Used instead of
// testWriteLoop when the response is produced asynchronously.
func nextFromSession(s *Session, t *testing.T) *ServerComMessage {
	select {
	case msg := <-s.send:
		return msg.(*ServerComMessage)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a session response")
		return nil
	}
}

func TestDispatchHello(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.dispatch(&ClientComMessage{
		Hi: &MsgClientHi{
			Id:        "123",
			Version:   "0.1",
			UserAgent: "test-ua",
		},
	})
	close(s.send)
	wg.Wait()

	if len(r.messages) != 1 {
		t.Fatalf("responses: expected 1, received %d.", len(r.messages))
	}
	resp := r.messages[0].(*ServerComMessage)
	if resp.Ctrl == nil {
		t.Fatal("Response must contain a ctrl message.")
	}
	if resp.Ctrl.Code != http.StatusCreated {
		t.Errorf("Response code: expected 201, got %d", resp.Ctrl.Code)
	}
	if resp.Ctrl.Params == nil {
		t.Error("Response is expected to contain params dict.")
	}
	if s.userAgent != "test-ua" {
		t.Errorf("Session UA expected to be 'test-ua' vs '%s'", s.userAgent)
	}
	if s.ver == 0 {
		t.Error("s.ver expected to be set")
	}
}

func TestDispatchHelloUnsupportedVersion(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.dispatch(&ClientComMessage{
		Hi: &MsgClientHi{Id: "123", Version: "0.0"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
	if s.ver != 0 {
		t.Errorf("s.ver expected 0 vs found %d", s.ver)
	}
}

func TestDispatchHelloVersionChange(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.dispatch(&ClientComMessage{Hi: &MsgClientHi{Id: "1", Version: "0.1"}})
	s.dispatch(&ClientComMessage{Hi: &MsgClientHi{Id: "2", Version: "0.2"}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusCreated, http.StatusConflict}, t)
}

func TestDispatchLoginBeforeHello(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "basic", Secret: "alice:pass"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusConflict}, t)
}

func TestDispatchLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	store.Users = um
	defer func() {
		store.Users = store.UsersObjMapper{}
		ctrl.Finish()
	}()

	um.EXPECT().Authenticate(gomock.Any(), "alice", "secret123").
		Return(&types.User{Id: "usr-a", Name: "alice"}, nil)

	s, r, wg := newTestSession("sid-1", "")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "basic", Secret: "alice:secret123"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusOK}, t)
	if s.uid != "usr-a" {
		t.Errorf("s.uid expected 'usr-a' vs '%s'", s.uid)
	}
	if s.uname != "alice" {
		t.Errorf("s.uname expected 'alice' vs '%s'", s.uname)
	}
	resp := r.messages[0].(*ServerComMessage)
	params := resp.Ctrl.Params.(map[string]interface{})
	if params["user"] != "usr-a" {
		t.Errorf("login params user: expected 'usr-a', got %v", params["user"])
	}
}

func TestDispatchLoginUnknownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	um := mock_store.NewMockUsersObjMapperInterface(ctrl)
	store.Users = um
	defer func() {
		store.Users = store.UsersObjMapper{}
		ctrl.Finish()
	}()

	um.EXPECT().Authenticate(gomock.Any(), "ghost", "nope").
		Return(nil, types.ErrUserNotFound)

	s, r, wg := newTestSession("sid-1", "")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "basic", Secret: "ghost:nope"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusUnauthorized}, t)
	if s.uid != "" {
		t.Errorf("s.uid must remain empty, got '%s'", s.uid)
	}
}

func TestDispatchLoginMalformedSecret(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "basic", Secret: "no-colon-here"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchLoginUnknownScheme(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "token", Secret: "abcdef"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchLoginAlreadyAuthenticated(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Login: &MsgClientLogin{Id: "123", Scheme: "basic", Secret: "alice:pass"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchPublishAuthRequired(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Pub: &MsgClientPub{Id: "123", Chat: 101, Content: "hello"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusUnauthorized}, t)
}

func TestDispatchPublishAttachFirst(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{
		Pub: &MsgClientPub{Id: "123", Chat: 101, Content: "hello"},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusConflict}, t)
}

func TestDispatchPublishRoutesToRoom(t *testing.T) {
	s := newSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")

	broadcast := make(chan *ServerComMessage, 1)
	s.addSub(101, &Subscription{broadcast: broadcast})

	s.dispatch(&ClientComMessage{
		Pub: &MsgClientPub{Id: "123", Chat: 101, Content: "hello room"},
	})

	select {
	case data := <-broadcast:
		if data.Data == nil {
			t.Fatal("expected a data message")
		}
		if data.Data.From != "usr-a" {
			t.Errorf("data from: expected 'usr-a', got '%s'", data.Data.From)
		}
		if data.Data.Content != "hello room" {
			t.Errorf("data content: expected 'hello room', got '%s'", data.Data.Content)
		}
		if data.rcptTo != 101 {
			t.Errorf("rcptTo: expected 101, got %d", data.rcptTo)
		}
	case <-time.After(time.Second):
		t.Fatal("message did not reach the room")
	}
}

func TestDispatchPublishBlankBody(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")

	broadcast := make(chan *ServerComMessage, 1)
	s.addSub(101, &Subscription{broadcast: broadcast})

	// Whitespace-only content never reaches the room.
	s.dispatch(&ClientComMessage{
		Pub: &MsgClientPub{Id: "123", Chat: 101, Content: " \t\n "},
	})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
	if len(broadcast) != 0 {
		t.Error("blank message must not be routed to the room")
	}
}

func TestDispatchSubscribeAlreadySubscribed(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.addSub(101, &Subscription{})

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "123", Chat: 101}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusNotModified}, t)
}

func TestDispatchSubscribeJoinsHub(t *testing.T) {
	savedHub := globals.hub
	globals.hub = &Hub{join: make(chan *sessionJoin, 1)}
	defer func() { globals.hub = savedHub }()

	s := newSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")

	s.dispatch(&ClientComMessage{Sub: &MsgClientSub{Id: "123", Chat: 101}})

	select {
	case join := <-globals.hub.join:
		if join.sess != s {
			t.Error("join request must reference the originating session")
		}
		if join.pkt.chat != 101 {
			t.Errorf("join chat: expected 101, got %d", join.pkt.chat)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe request did not reach the hub")
	}
}

func TestDispatchLeaveNotJoined(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.dispatch(&ClientComMessage{Leave: &MsgClientLeave{Id: "123", Chat: 101}})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusNotModified}, t)
}

func TestDispatchUnknownMessage(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "usr-a")
	s.dispatch(&ClientComMessage{})
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestDispatchRawMalformed(t *testing.T) {
	s, r, wg := newTestSession("sid-1", "")
	s.dispatchRaw([]byte("{not-json"))
	close(s.send)
	wg.Wait()

	verifyResponseCodes(r, []int{http.StatusBadRequest}, t)
}

func TestEditRelayMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	savedPool := globals.taskPool
	globals.taskPool = concurrency.NewGoRoutinePool(2)
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		globals.taskPool.Stop()
		globals.taskPool = savedPool
		ctrl.Finish()
	}()

	// The stored message was never edited: the relay is bogus.
	mm.EXPECT().Get(gomock.Any(), int64(7)).
		Return(&types.Message{Id: 7, ChatId: 101, Content: "original", Edited: false}, nil)

	s := newSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.addSub(101, &Subscription{})

	s.dispatch(&ClientComMessage{
		Edit: &MsgClientEdit{Id: "123", Chat: 101, Seq: 7, Content: "changed"},
	})

	resp := nextFromSession(s, t)
	if resp.Ctrl == nil || resp.Ctrl.Code != http.StatusForbidden {
		t.Errorf("expected ctrl 403, got %+v", resp)
	}
}

func TestDelRelayMessageStillPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	savedPool := globals.taskPool
	globals.taskPool = concurrency.NewGoRoutinePool(2)
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		globals.taskPool.Stop()
		globals.taskPool = savedPool
		ctrl.Finish()
	}()

	mm.EXPECT().Get(gomock.Any(), int64(7)).
		Return(&types.Message{Id: 7, ChatId: 101, Content: "still here"}, nil)

	s := newSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.addSub(101, &Subscription{})

	s.dispatch(&ClientComMessage{
		Del: &MsgClientDel{Id: "123", Chat: 101, Seq: 7},
	})

	resp := nextFromSession(s, t)
	if resp.Ctrl == nil || resp.Ctrl.Code != http.StatusForbidden {
		t.Errorf("expected ctrl 403, got %+v", resp)
	}
}

func TestDelRelayBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	mm := mock_store.NewMockMessagesObjMapperInterface(ctrl)
	store.Messages = mm
	savedHub := globals.hub
	globals.hub = &Hub{route: make(chan *ServerComMessage, 4)}
	savedPool := globals.taskPool
	globals.taskPool = concurrency.NewGoRoutinePool(2)
	defer func() {
		store.Messages = store.MessagesObjMapper{}
		globals.hub = savedHub
		globals.taskPool.Stop()
		globals.taskPool = savedPool
		ctrl.Finish()
	}()

	mm.EXPECT().Get(gomock.Any(), int64(7)).Return(nil, types.ErrNotFound)

	s := newSession("sid-1", "usr-a")
	s.ver = parseVersion("0.1")
	s.addSub(101, &Subscription{})

	s.dispatch(&ClientComMessage{
		Del: &MsgClientDel{Id: "123", Chat: 101, Seq: 7},
	})

	select {
	case routed := <-globals.hub.route:
		if routed.Deleted == nil {
			t.Fatal("expected a deleted message")
		}
		if routed.Deleted.Seq != 7 {
			t.Errorf("deleted seq: expected 7, got %d", routed.Deleted.Seq)
		}
		if routed.rcptTo != 101 {
			t.Errorf("rcptTo: expected 101, got %d", routed.rcptTo)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delete relay did not reach the hub")
	}

	resp := nextFromSession(s, t)
	if resp.Ctrl == nil || resp.Ctrl.Code != http.StatusOK {
		t.Errorf("expected ctrl 200, got %+v", resp)
	}
}
