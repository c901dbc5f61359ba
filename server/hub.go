/******************************************************************************
 *
 *  Description :
 *
 *    Hub for processing events such as creating and tearing down rooms,
 *    routing messages between rooms.
 *
 *****************************************************************************/

package main

import (
	"sync"
	"time"

	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/types"
)

// Request to hub to subscribe session to a room.
type sessionJoin struct {
	// Message, containing request details.
	pkt *ClientComMessage
	// Session to attach to the room.
	sess *Session
}

// Session wants to leave the room.
type sessionLeave struct {
	// Message, containing request details. Could be nil.
	pkt *ClientComMessage
	// Session which initiated the request.
	sess *Session
}

// Request to hub to remove the room.
type roomUnreg struct {
	// Session making the request, could be nil.
	sess *Session
	// Original request, could be nil.
	pkt *ClientComMessage
	// Id of the room to drop. Duplicated here because pkt could be nil.
	chat int64
	// Unregister then delete: the chat is gone from the database.
	del bool
}

// Hub is the core structure which holds rooms.
type Hub struct {
	// Rooms indexed by chat id.
	rooms *sync.Map

	// Channel for routing messages between rooms, buffered at 4096.
	route chan *ServerComMessage

	// Subscribe session to a room, possibly creating a new room, buffered at 256.
	join chan *sessionJoin

	// Remove room from hub, possibly deleting it afterwards, buffered at 256.
	unreg chan *roomUnreg

	// Request to shutdown, unbuffered.
	shutdown chan chan<- bool
}

func (h *Hub) roomGet(chat int64) *Room {
	if r, ok := h.rooms.Load(chat); ok {
		return r.(*Room)
	}
	return nil
}

func (h *Hub) roomPut(chat int64, r *Room) {
	h.rooms.Store(chat, r)
}

func (h *Hub) roomDel(chat int64) {
	h.rooms.Delete(chat)
}

func newHub() *Hub {
	var h = &Hub{
		rooms: &sync.Map{},
		// This needs to be buffered: the API handlers push broadcasts here.
		route:    make(chan *ServerComMessage, 4096),
		join:     make(chan *sessionJoin, 256),
		unreg:    make(chan *roomUnreg, 256),
		shutdown: make(chan chan<- bool),
	}

	statsRegisterInt("LiveRooms")
	statsRegisterInt("TotalRooms")

	statsRegisterInt("IncomingMessagesWebsockTotal")
	statsRegisterInt("OutgoingMessagesWebsockTotal")

	go h.run()

	return h
}

func (h *Hub) run() {
	for {
		select {
		case join := <-h.join:
			// Handle a subscription request:
			// 1. If the room is not loaded, load it from the database.
			// 2. Check membership and reject, if appropriate.
			// 3. Attach session to the room.
			r := h.roomGet(join.pkt.chat)
			if r == nil {
				// Room not loaded yet.
				r = &Room{
					chat:      join.pkt.chat,
					sessions:  make(map[*Session]struct{}),
					broadcast: make(chan *ServerComMessage, 256),
					reg:       make(chan *sessionJoin, 256),
					unreg:     make(chan *sessionLeave, 256),
					exit:      make(chan *shutDown, 1),
				}
				// Room is created in paused state because it's not yet loaded.
				r.markPaused(true)
				// Save the room now to prevent a race with concurrent joins.
				h.roomPut(join.pkt.chat, r)

				// Load the chat and complete the subscription.
				go roomInit(r, join, h)

			} else {
				// Room found. It will check membership and reply with {ctrl}.
				select {
				case r.reg <- join:
				default:
					join.sess.queueOut(ErrServiceUnavailable(join.pkt.id, join.pkt.chat, join.pkt.timestamp))
					logs.Err.Println("hub: join queue full, chat", join.pkt.chat, join.sess.sid)
				}
			}

		case msg := <-h.route:
			// Broadcast incoming message to the room, if it's loaded.
			// API-originated {edited} and {deleted} end up here too.
			if dst := h.roomGet(msg.rcptTo); dst != nil {
				select {
				case dst.broadcast <- msg:
				default:
					logs.Err.Println("hub: room's broadcast queue is full, chat", dst.chat)
				}
			} else if msg.Data != nil {
				// Room is not loaded: the message came from a session not
				// attached to the room. Edited/Deleted for offline rooms are
				// dropped silently, attached sessions will catch up from
				// history.
				if msg.sess != nil {
					msg.sess.queueOut(ErrAttachFirst(msg.id, msg.rcptTo, msg.timestamp))
				}
			}

		case unreg := <-h.unreg:
			// The room is being garbage collected or its chat was deleted.
			reason := StopNone
			if unreg.del {
				reason = StopDeleted
			}
			if r := h.roomGet(unreg.chat); r != nil {
				r.markDeleted()
				h.roomDel(unreg.chat)

				r.exit <- &shutDown{reason: reason}

				statsInc("LiveRooms", -1)
			}
			if unreg.sess != nil && unreg.pkt != nil {
				unreg.sess.queueOut(NoErr(unreg.pkt.id, unreg.chat, types.TimeNow()))
			}

		case hubdone := <-h.shutdown:
			// Start the cleanup process.
			roomsdone := make(chan bool)
			roomCount := 0
			h.rooms.Range(func(_, r interface{}) bool {
				r.(*Room).exit <- &shutDown{done: roomsdone, reason: StopShutdown}
				roomCount++
				return true
			})

			for i := 0; i < roomCount; i++ {
				<-roomsdone
			}

			logs.Info.Printf("Hub shutdown completed with %d rooms", roomCount)

			// Let the main goroutine know we are done with the cleanup.
			hubdone <- true

			return

		case <-time.After(idleSessionTimeout):
		}
	}
}

// roomInit completes the initialization of a freshly minted room: loads the
// chat from the database and processes the first subscription request.
func roomInit(r *Room, join *sessionJoin, h *Hub) {
	chat, err := store.Chats.Get(nil, r.chat)
	if err != nil {
		logs.Warn.Println("hub: failed to load chat", r.chat, err)
		join.sess.queueOut(decodeStoreError(err, join.pkt.id, r.chat, types.TimeNow()))
		h.unreg <- &roomUnreg{chat: r.chat}
		return
	}

	r.perUser = make(map[string]string, len(chat.Members))
	for i := range chat.Members {
		r.perUser[chat.Members[i].Id] = chat.Members[i].Name
	}

	// The first joiner must be a member.
	if _, member := r.perUser[join.pkt.asUser]; !member {
		join.sess.queueOut(ErrPermissionDenied(join.pkt.id, r.chat, types.TimeNow()))
		h.unreg <- &roomUnreg{chat: r.chat}
		return
	}

	statsInc("LiveRooms", 1)
	statsInc("TotalRooms", 1)

	r.markPaused(false)
	r.handleSubscription(join)

	r.run(h)
}
