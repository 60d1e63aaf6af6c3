package conn

import "sync"

// Peer is a logical outbound connection request made through a grid
// Connection (spec.md §3, Peer). It carries the numeric id the grid
// Connection allocated and the callback to invoke once the matching
// PeerReply arrives.
type Peer struct {
	ID      uint32
	OnReply func(tunnelID []byte)
}

// peerSet is the set of outstanding Peers a grid-mode Connection
// maintains, keyed by id. A Peer holds no pointer back to its grid
// Connection; a MSG_PEER_REPLY is dispatched through the peer set of the
// grid Connection that received it, without a Registry lookup.
type peerSet struct {
	mu     sync.Mutex
	nextID uint32
	peers  map[uint32]*Peer
}

func newPeerSet() *peerSet {
	return &peerSet{peers: map[uint32]*Peer{}}
}

// Add allocates a fresh peer id, registers onReply under it, and returns
// the new Peer.
func (s *peerSet) Add(onReply func(tunnelID []byte)) *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := &Peer{ID: s.nextID, OnReply: onReply}
	s.peers[p.ID] = p
	return p
}

// Dispatch delivers tunnelID to the Peer registered under id and removes
// it from the set. It reports whether a matching Peer was found.
func (s *peerSet) Dispatch(id uint32, tunnelID []byte) bool {
	s.mu.Lock()
	p, ok := s.peers[id]
	if ok {
		delete(s.peers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if p.OnReply != nil {
		p.OnReply(tunnelID)
	}
	return true
}

// Remove discards the Peer registered under id without invoking its
// callback, e.g. when the owning grid Connection is destroyed.
func (s *peerSet) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}
