/******************************************************************************
 *
 *  Description :
 *
 *  Management of live sessions
 *
 *****************************************************************************/

package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/server/logs"
	"github.com/parley-im/parley/server/store"
	"github.com/parley-im/parley/server/store/types"
)

// SessionStore holds live sessions, indexed by session ID.
type SessionStore struct {
	lock sync.Mutex

	// All sessions indexed by session ID.
	sessCache map[string]*Session
}

// NewSession creates a new session and saves it to the session store.
func (ss *SessionStore) NewSession(conn interface{}, sid string) (*Session, int) {
	var s Session

	s.sid = sid

	switch c := conn.(type) {
	case *websocket.Conn:
		s.proto = WEBSOCK
		s.ws = c
	default:
		s.proto = NONE
	}

	if s.proto != NONE {
		s.subs = make(map[int64]*Subscription)
		s.send = make(chan interface{}, 256) // buffered
		s.stop = make(chan interface{}, 1)   // Buffered by 1 just to make it non-blocking
	}

	s.lastAction = time.Now()
	if s.sid == "" {
		s.sid = store.GetUidString()
	}

	ss.lock.Lock()
	ss.sessCache[s.sid] = &s
	count := len(ss.sessCache)
	ss.lock.Unlock()

	statsInc("LiveSessions", 1)
	statsInc("TotalSessions", 1)

	return &s, count
}

// Get fetches a session from store by session ID.
func (ss *SessionStore) Get(sid string) *Session {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	return ss.sessCache[sid]
}

// Delete removes session from store.
func (ss *SessionStore) Delete(s *Session) int {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	if _, ok := ss.sessCache[s.sid]; ok {
		delete(ss.sessCache, s.sid)
		statsInc("LiveSessions", -1)
	}
	return len(ss.sessCache)
}

// Shutdown terminates sessionStore. No need to clean up.
func (ss *SessionStore) Shutdown() {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	shutdown := NoErrShutdown(types.TimeNow())
	for _, s := range ss.sessCache {
		if s.stop != nil {
			s.stop <- s.serialize(shutdown)
		}
	}

	logs.Info.Printf("SessionStore shut down, sessions terminated: %d", len(ss.sessCache))
}

// NewSessionStore initializes a session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessCache: make(map[string]*Session),
	}
}
