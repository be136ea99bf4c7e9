package client

import (
	"maps"
	"slices"
	"sync"
)

// Store holds the client's view of the chat: the open conversation, unseen
// counters per peer, presence and contacts. It is safe for concurrent use;
// socket pushes and REST results arrive on different goroutines.
//
// Opening a conversation is two-phase. BeginOpen swaps the view out and
// starts buffering pushes that belong to the new conversation; CompleteOpen
// installs the fetched history and merges the buffer into it, dropping
// duplicates by message id. A result for a conversation that has since been
// replaced is discarded.
type Store struct {
	mu sync.Mutex

	self     UserID
	openPeer UserID
	view     []Message
	inView   map[string]struct{}

	generation uint64
	fetching   bool
	pending    []Message

	unseen   map[UserID]int
	online   map[UserID]struct{}
	contacts []Contact

	// contactsGen counts contact fetches; touched records the fetch
	// generation current when a peer's counter last changed locally.
	contactsGen     uint64
	appliedContacts uint64
	touched         map[UserID]uint64
}

// NewStore creates an empty store for the given local user.
func NewStore(self UserID) *Store {
	return &Store{
		self:   self,
		inView: make(map[string]struct{}),
		unseen:  make(map[UserID]int),
		online:  make(map[UserID]struct{}),
		touched: make(map[UserID]uint64),
	}
}

// Self returns the local user.
func (s *Store) Self() UserID {
	return s.self
}

// ApplyPush routes one pushed message and reports what happened to it. The
// caller is responsible for marking AppendToOpen messages seen.
func (s *Store) ApplyPush(msg Message) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := Classify(s.self, s.openPeer, msg)
	switch outcome {
	case AppendToOpen:
		s.unseen[msg.SenderID] = 0
		s.touched[msg.SenderID] = s.contactsGen
		msg.Seen = true
		s.appendLocked(msg)
	case AppendAsSelf:
		s.appendLocked(msg)
	case IncrementUnseen:
		s.unseen[msg.SenderID]++
		s.touched[msg.SenderID] = s.contactsGen
	}
	return outcome
}

func (s *Store) appendLocked(msg Message) {
	if s.fetching {
		s.pending = append(s.pending, msg)
		return
	}
	if _, dup := s.inView[msg.ID]; dup {
		return
	}
	s.inView[msg.ID] = struct{}{}
	s.view = append(s.view, msg)
}

// BeginOpen switches to peer, clears the view and resets the peer's unseen
// counter. The returned generation must be passed to CompleteOpen or FailOpen.
func (s *Store) BeginOpen(peer UserID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.openPeer = peer
	s.fetching = true
	s.pending = nil
	s.view = nil
	s.inView = make(map[string]struct{})
	delete(s.unseen, peer)
	s.touched[peer] = s.contactsGen
	return s.generation
}

// CompleteOpen installs fetched history. It returns false, changing nothing,
// when another conversation was opened in the meantime or the fetch already
// ended.
func (s *Store) CompleteOpen(generation uint64, history []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.fetching {
		return false
	}

	s.view = make([]Message, 0, len(history)+len(s.pending))
	s.inView = make(map[string]struct{}, len(history)+len(s.pending))
	for _, msg := range history {
		if _, dup := s.inView[msg.ID]; dup {
			continue
		}
		s.inView[msg.ID] = struct{}{}
		s.view = append(s.view, msg)
	}
	for _, msg := range s.pending {
		if _, dup := s.inView[msg.ID]; dup {
			continue
		}
		s.inView[msg.ID] = struct{}{}
		s.view = append(s.view, msg)
	}
	s.pending = nil
	s.fetching = false
	delete(s.unseen, s.openPeer)
	return true
}

// FailOpen ends a fetch that errored. Buffered pushes become the view so
// nothing received live is lost.
func (s *Store) FailOpen(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.fetching {
		return
	}
	s.fetching = false
	pending := s.pending
	s.pending = nil
	for _, msg := range pending {
		s.appendLocked(msg)
	}
}

// CloseConversation leaves the open conversation.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.openPeer = ""
	s.fetching = false
	s.pending = nil
	s.view = nil
	s.inView = make(map[string]struct{})
}

// SetOnline replaces the presence set with a server snapshot.
func (s *Store) SetOnline(ids []UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[UserID]struct{}, len(ids))
	for _, id := range ids {
		s.online[id] = struct{}{}
	}
}

// BeginContacts marks the start of a contacts fetch. The returned generation
// must be passed to CompleteContacts.
func (s *Store) BeginContacts() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contactsGen++
	return s.contactsGen
}

// CompleteContacts installs a contacts result. Server counts replace local
// ones except for peers whose counter changed after the fetch began: the
// server may have counted before or after those pushes, so the local value
// wins. The open peer stays at zero. A result older than one already applied
// is dropped.
func (s *Store) CompleteContacts(generation uint64, contacts []Contact, unseen map[UserID]int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation <= s.appliedContacts {
		return false
	}
	s.appliedContacts = generation
	s.contacts = slices.Clone(contacts)

	next := make(map[UserID]int, len(unseen))
	for peer, n := range s.unseen {
		if t, ok := s.touched[peer]; ok && t >= generation && n > 0 {
			next[peer] = n
		}
	}
	for peer, n := range unseen {
		if n <= 0 || peer == s.openPeer {
			continue
		}
		if t, ok := s.touched[peer]; ok && t >= generation {
			continue
		}
		next[peer] = n
	}
	s.unseen = next
	return true
}

// SetContacts replaces the contact list and unseen counters with a result
// fetched now.
func (s *Store) SetContacts(contacts []Contact, unseen map[UserID]int) {
	s.CompleteContacts(s.BeginContacts(), contacts, unseen)
}

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	Self     UserID
	OpenPeer UserID
	Loading  bool
	View     []Message
	Unseen   map[UserID]int
	Online   []UserID
	Contacts []Contact
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	unseen := make(map[UserID]int, len(s.unseen))
	for peer, n := range s.unseen {
		if n > 0 {
			unseen[peer] = n
		}
	}
	online := slices.Sorted(maps.Keys(s.online))

	return Snapshot{
		Self:     s.self,
		OpenPeer: s.openPeer,
		Loading:  s.fetching,
		View:     slices.Clone(s.view),
		Unseen:   unseen,
		Online:   online,
		Contacts: slices.Clone(s.contacts),
	}
}

// Unseen returns the unseen count for one peer.
func (s *Store) Unseen(peer UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen[peer]
}

// IsOnline reports whether peer was in the last presence snapshot.
func (s *Store) IsOnline(peer UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[peer]
	return ok
}

// OpenPeer returns the peer of the open conversation, or "".
func (s *Store) OpenPeer() UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPeer
}
