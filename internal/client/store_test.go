package client

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, from, to UserID) Message {
	return Message{ID: id, SenderID: from, ReceiverID: to, Text: "text " + id, CreatedAt: time.Now()}
}

func ids(view []Message) []string {
	out := make([]string, 0, len(view))
	for _, m := range view {
		out = append(out, m.ID)
	}
	return out
}

func TestStoreUnseenCounting(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")
	require.True(t, s.CompleteOpen(gen, nil))

	assert.Equal(t, IncrementUnseen, s.ApplyPush(msg("1", "c", "me")))
	assert.Equal(t, IncrementUnseen, s.ApplyPush(msg("2", "c", "me")))
	assert.Equal(t, AppendAsSelf, s.ApplyPush(msg("3", "me", "b")))
	assert.Equal(t, AppendToOpen, s.ApplyPush(msg("4", "b", "me")))

	snap := s.Snapshot()
	assert.Equal(t, map[UserID]int{"c": 2}, snap.Unseen)
	assert.Equal(t, []string{"3", "4"}, ids(snap.View))
	assert.True(t, snap.View[1].Seen)
	assert.Equal(t, 0, s.Unseen("b"))
}

func TestStoreOpenResetsUnseen(t *testing.T) {
	s := NewStore("me")
	s.ApplyPush(msg("1", "c", "me"))
	s.ApplyPush(msg("2", "c", "me"))
	require.Equal(t, 2, s.Unseen("c"))

	gen := s.BeginOpen("c")
	assert.Equal(t, 0, s.Unseen("c"))
	require.True(t, s.CompleteOpen(gen, []Message{msg("1", "c", "me"), msg("2", "c", "me")}))
	assert.Equal(t, 0, s.Unseen("c"))
	assert.Equal(t, []string{"1", "2"}, ids(s.Snapshot().View))
}

func TestStoreSwitchReplacesView(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")
	require.True(t, s.CompleteOpen(gen, []Message{msg("1", "b", "me")}))
	s.ApplyPush(msg("2", "b", "me"))

	gen = s.BeginOpen("c")
	assert.Empty(t, s.Snapshot().View)
	require.True(t, s.CompleteOpen(gen, []Message{msg("9", "c", "me")}))
	assert.Equal(t, []string{"9"}, ids(s.Snapshot().View))
}

func TestStorePushDuringFetchIsMergedOnce(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")

	// "2" arrives live and is also part of the fetched history; "3" is newer.
	assert.Equal(t, AppendToOpen, s.ApplyPush(msg("2", "b", "me")))
	assert.Equal(t, AppendAsSelf, s.ApplyPush(msg("3", "me", "b")))
	assert.True(t, s.Snapshot().Loading)
	assert.Empty(t, s.Snapshot().View)

	require.True(t, s.CompleteOpen(gen, []Message{msg("1", "b", "me"), msg("2", "b", "me")}))
	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, []string{"1", "2", "3"}, ids(snap.View))
}

func TestStoreStaleFetchDiscarded(t *testing.T) {
	s := NewStore("me")
	first := s.BeginOpen("b")
	second := s.BeginOpen("c")

	assert.False(t, s.CompleteOpen(first, []Message{msg("1", "b", "me")}))
	assert.Equal(t, UserID("c"), s.OpenPeer())
	assert.True(t, s.Snapshot().Loading)

	require.True(t, s.CompleteOpen(second, []Message{msg("7", "c", "me")}))
	assert.Equal(t, []string{"7"}, ids(s.Snapshot().View))
}

func TestStoreFailOpenKeepsLivePushes(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")
	s.ApplyPush(msg("5", "b", "me"))

	s.FailOpen(gen)
	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, []string{"5"}, ids(snap.View))

	// A late result for the failed fetch changes nothing.
	assert.False(t, s.CompleteOpen(gen, nil))
	assert.Equal(t, []string{"5"}, ids(s.Snapshot().View))
}

func TestStoreCloseConversation(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")
	s.CloseConversation()
	assert.False(t, s.CompleteOpen(gen, []Message{msg("1", "b", "me")}))
	assert.Empty(t, s.Snapshot().View)

	assert.Equal(t, IncrementUnseen, s.ApplyPush(msg("2", "b", "me")))
	assert.Equal(t, 1, s.Unseen("b"))
}

func TestStoreContactsAndPresence(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")
	require.True(t, s.CompleteOpen(gen, nil))

	s.SetContacts([]Contact{{ID: "b"}, {ID: "c"}}, map[UserID]int{"b": 4, "c": 2, "d": 0})
	assert.Equal(t, 0, s.Unseen("b"))
	assert.Equal(t, 2, s.Unseen("c"))
	assert.Equal(t, map[UserID]int{"c": 2}, s.Snapshot().Unseen)
	assert.Len(t, s.Snapshot().Contacts, 2)

	s.SetOnline([]UserID{"c", "b"})
	assert.True(t, s.IsOnline("b"))
	assert.False(t, s.IsOnline("d"))
	assert.Equal(t, []UserID{"b", "c"}, s.Snapshot().Online)
}

func TestStoreConcurrentPushes(t *testing.T) {
	s := NewStore("me")
	gen := s.BeginOpen("b")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.ApplyPush(msg(fmt.Sprintf("b-%d-%d", w, i), "b", "me"))
				s.ApplyPush(msg(fmt.Sprintf("c-%d-%d", w, i), "c", "me"))
			}
		}(w)
	}
	wg.Wait()
	require.True(t, s.CompleteOpen(gen, nil))

	assert.Len(t, s.Snapshot().View, 200)
	assert.Equal(t, 200, s.Unseen("c"))
}

func TestStoreContactsFetchKeepsPushesCountedDuringFetch(t *testing.T) {
	// "2" arrives while the fetch is in flight. The server may or may not
	// have counted it; either way the local count is neither lost nor doubled.
	for _, serverCount := range []int{1, 2} {
		t.Run(fmt.Sprintf("server counted %d", serverCount), func(t *testing.T) {
			s := NewStore("me")
			s.ApplyPush(msg("1", "c", "me"))
			gen := s.BeginContacts()
			s.ApplyPush(msg("2", "c", "me"))

			require.True(t, s.CompleteContacts(gen, nil, map[UserID]int{"c": serverCount, "d": 3}))
			assert.Equal(t, 2, s.Unseen("c"))
			assert.Equal(t, 3, s.Unseen("d"))

			// A later fetch with nothing in flight is authoritative again.
			require.True(t, s.CompleteContacts(s.BeginContacts(), nil, map[UserID]int{"c": 5}))
			assert.Equal(t, 5, s.Unseen("c"))
			assert.Equal(t, 0, s.Unseen("d"))
		})
	}
}

func TestStoreContactsFetchKeepsOpenReset(t *testing.T) {
	s := NewStore("me")
	s.ApplyPush(msg("1", "c", "me"))

	gen := s.BeginContacts()
	open := s.BeginOpen("c")
	require.True(t, s.CompleteOpen(open, nil))
	s.CloseConversation()

	// The server count predates the open that flipped everything seen.
	require.True(t, s.CompleteContacts(gen, nil, map[UserID]int{"c": 1}))
	assert.Equal(t, 0, s.Unseen("c"))
}

func TestStoreStaleContactsResultDropped(t *testing.T) {
	s := NewStore("me")
	first := s.BeginContacts()
	second := s.BeginContacts()

	require.True(t, s.CompleteContacts(second, []Contact{{ID: "b"}}, map[UserID]int{"b": 1}))
	assert.False(t, s.CompleteContacts(first, []Contact{{ID: "old"}}, map[UserID]int{"b": 9}))
	assert.Equal(t, 1, s.Unseen("b"))
	assert.Equal(t, []Contact{{ID: "b"}}, s.Snapshot().Contacts)
}
