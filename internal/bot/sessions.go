package bot

import "sync"

// chat input states for the multi-step flows
type state int

const (
	stateNone state = iota
	stateEnterTopupAmount
	stateEnterDepositID
)

// sessions tracks what each chat is in the middle of typing. An injectable
// store rather than a package-level map so tests can run bots side by side.
type sessions struct {
	mu sync.Mutex
	m  map[int64]state
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]state)}
}

func (s *sessions) get(chatID int64) state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[chatID]
}

func (s *sessions) set(chatID int64, st state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = st
}

func (s *sessions) clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}
