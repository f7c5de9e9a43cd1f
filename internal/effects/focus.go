package effects

// FocusRequest asks the camera to center on one node. Seq is assigned by
// the requester and must increase over time; replaying an old request is
// a no-op.
type FocusRequest struct {
	Seq    int64  `json:"seq"`
	NodeID string `json:"node_id"`
}

// FocusTarget is a resolved focus request with the node's coordinates.
type FocusTarget struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// FocusTracker de-duplicates focus requests so each one moves the camera
// at most once, even when the same view state is rebuilt every poll. Not
// safe for concurrent use.
type FocusTracker struct {
	lastSeq int64
	pending *FocusRequest
}

// NewFocusTracker returns a tracker that accepts any positive sequence.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{}
}

// Request records a focus request. Requests whose sequence is not
// strictly greater than the last accepted one are dropped; a newer
// request replaces a still-pending older one.
func (f *FocusTracker) Request(req FocusRequest) bool {
	if req.Seq <= f.lastSeq || req.NodeID == "" {
		return false
	}
	f.lastSeq = req.Seq
	f.pending = &req
	return true
}

// Resolve hands out the pending request once the target's position is
// known. lookup reports the node's coordinates; until it succeeds the
// request stays pending, so a focus on a node that has not entered the
// graph yet fires on a later cycle instead of being lost.
func (f *FocusTracker) Resolve(lookup func(nodeID string) (x, y float64, ok bool)) (FocusTarget, bool) {
	if f.pending == nil {
		return FocusTarget{}, false
	}
	x, y, ok := lookup(f.pending.NodeID)
	if !ok {
		return FocusTarget{}, false
	}
	target := FocusTarget{NodeID: f.pending.NodeID, X: x, Y: y}
	f.pending = nil
	return target, true
}

// Pending reports the not-yet-resolved request, if any.
func (f *FocusTracker) Pending() (FocusRequest, bool) {
	if f.pending == nil {
		return FocusRequest{}, false
	}
	return *f.pending, true
}
