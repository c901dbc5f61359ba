/******************************************************************************
 *
 *  Description :
 *
 *    A room is a live chat: a chat loaded into memory with sessions
 *    attached to it. The room serializes message persistence and fan-out.
 *
 *****************************************************************************/

package main

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/types"
)

// Unloads the room after this period of no attached sessions.
const idleRoomTimeout = time.Second * 15

// Reasons why the room is shut down.
const (
	// StopNone: the room is garbage collected on inactivity.
	StopNone = iota
	// StopShutdown: the server is shutting down.
	StopShutdown
	// StopDeleted: the chat was deleted from the database.
	StopDeleted
)

// shutDown is a request to terminate the room.
type shutDown struct {
	// Channel to report completion of the shutdown.
	done chan<- bool
	// Reason for the shutdown.
	reason int
}

// Room status values.
const (
	roomStatusLoaded = 0
	// Room is paused while it's being loaded from the database.
	roomStatusPaused = 1
	// Room is unregistered from the hub and will not accept messages.
	roomStatusDeleted = 2
)

// Room is a single loaded chat.
type Room struct {
	// Chat id, immutable.
	chat int64

	// Status of the room: one of roomStatus* values. Accessed atomically.
	status int32

	// Id of the last message saved to this chat.
	lastID int64

	// Display names of chat members, keyed by user id. Accessed only from
	// the room goroutine.
	perUser map[string]string

	// Sessions attached to the room.
	sessions map[*Session]struct{}

	// Inbound messages from sessions or the hub, buffered at 256.
	broadcast chan *ServerComMessage

	// Subscribe requests, buffered at 256.
	reg chan *sessionJoin

	// Unsubscribe requests, buffered at 256.
	unreg chan *sessionLeave

	// Request to shutdown the room, buffered at 1.
	exit chan *shutDown
}

func (r *Room) markPaused(pause bool) {
	if pause {
		atomic.StoreInt32(&r.status, roomStatusPaused)
	} else {
		atomic.StoreInt32(&r.status, roomStatusLoaded)
	}
}

func (r *Room) markDeleted() {
	atomic.StoreInt32(&r.status, roomStatusDeleted)
}

func (r *Room) isDeleted() bool {
	return atomic.LoadInt32(&r.status) == roomStatusDeleted
}

func (r *Room) run(hub *Hub) {
	// The timer is initially stopped: handleSubscription has just attached
	// the first session.
	killTimer := time.NewTimer(time.Hour)
	killTimer.Stop()

	for {
		select {
		case join := <-r.reg:
			killTimer.Stop()
			r.handleSubscription(join)

		case leave := <-r.unreg:
			delete(r.sessions, leave.sess)
			leave.sess.delSub(r.chat)
			if leave.pkt != nil {
				leave.sess.queueOut(NoErr(leave.pkt.id, r.chat, leave.pkt.timestamp))
			}
			if len(r.sessions) == 0 {
				killTimer.Reset(idleRoomTimeout)
			}

		case msg := <-r.broadcast:
			r.handleBroadcast(msg)

		case sd := <-r.exit:
			r.evictAll(sd.reason)
			if sd.done != nil {
				sd.done <- true
			}
			return

		case <-killTimer.C:
			// No sessions for a while, unload the room.
			hub.unreg <- &roomUnreg{chat: r.chat}
		}
	}
}

// handleSubscription attaches a session to the room, checking membership
// first.
func (r *Room) handleSubscription(join *sessionJoin) {
	sess, pkt := join.sess, join.pkt

	if _, attached := r.sessions[sess]; attached {
		sess.queueOut(InfoAlreadySubscribed(pkt.id, r.chat, pkt.timestamp))
		return
	}

	if _, member := r.perUser[pkt.asUser]; !member {
		// The user may have been added to the chat after the room was
		// loaded. Re-check against the database and cache the name.
		ok, err := store.Chats.IsMember(nil, r.chat, pkt.asUser)
		if err != nil {
			sess.queueOut(decodeStoreError(err, pkt.id, r.chat, types.TimeNow()))
			return
		}
		if !ok {
			sess.queueOut(ErrPermissionDenied(pkt.id, r.chat, types.TimeNow()))
			return
		}
		if user, err := store.Users.Get(nil, pkt.asUser); err == nil {
			r.perUser[pkt.asUser] = user.Name
		}
	}

	r.sessions[sess] = struct{}{}
	sess.addSub(r.chat, &Subscription{broadcast: r.broadcast, done: r.unreg})

	sess.queueOut(NoErr(pkt.id, r.chat, pkt.timestamp))
}

// handleBroadcast persists and distributes a message to all attached
// sessions.
func (r *Room) handleBroadcast(msg *ServerComMessage) {
	if r.isDeleted() {
		return
	}

	if msg.Data != nil {
		if strings.TrimSpace(msg.Data.Content) == "" {
			// Blank messages are never persisted.
			if msg.sess != nil {
				msg.sess.queueOut(ErrMalformed(msg.id, r.chat, types.TimeNow()))
			}
			return
		}

		saved := &types.Message{
			ChatId:    r.chat,
			From:      msg.Data.From,
			Content:   msg.Data.Content,
			CreatedAt: msg.timestamp,
		}
		if err := store.Messages.Save(nil, saved); err != nil {
			logs.Warn.Println("room: failed to save message, chat", r.chat, err)
			if msg.sess != nil {
				msg.sess.queueOut(decodeStoreError(err, msg.id, r.chat, types.TimeNow()))
			}
			return
		}

		r.lastID = saved.Id
		msg.Data.Seq = saved.Id
		msg.Data.Timestamp = saved.CreatedAt
		msg.Data.FromName = r.perUser[msg.Data.From]

		// Confirm receipt to the sender. The message itself is echoed back
		// through the normal fan-out below.
		if msg.sess != nil {
			msg.sess.queueOut(NoErrAcceptedParams(msg.id, r.chat, msg.timestamp,
				map[string]interface{}{"seq": saved.Id}))
		}
	}

	r.fanOut(msg)
}

func (r *Room) fanOut(msg *ServerComMessage) {
	for sess := range r.sessions {
		if !sess.queueOut(msg) {
			// Connection is stuck, detach it from the room.
			logs.Err.Println("room: connection stuck, detaching", sess.sid)
			delete(r.sessions, sess)
			sess.delSub(r.chat)
		}
	}
}

// evictAll detaches all sessions in preparation for the room shutdown.
func (r *Room) evictAll(reason int) {
	var note *ServerComMessage
	switch reason {
	case StopShutdown:
		note = NoErrShutdown(types.TimeNow())
	case StopDeleted:
		note = &ServerComMessage{Ctrl: &MsgServerCtrl{
			Chat:      r.chat,
			Code:      http.StatusGone, // 410
			Text:      "chat deleted",
			Timestamp: types.TimeNow()}}
	}

	for sess := range r.sessions {
		sess.delSub(r.chat)
		if note != nil {
			sess.queueOut(note)
		}
	}
}
