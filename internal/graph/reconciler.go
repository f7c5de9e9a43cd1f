// Package graph reconciles per-poll transaction graph snapshots into a
// stable structure whose node and link objects keep their identity across
// polls. The rendering layer keys physics state (position, velocity) off
// object identity; replacing objects wholesale on every poll would reset
// the simulation and visually explode the layout, so the reconciler merges
// snapshots into the existing objects instead.
package graph

import (
	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/models"
)

// Node is a stable graph node. X and Y are owned by the rendering layer
// and carried forward by the reconciler; they are not part of the incoming
// snapshot.
type Node struct {
	ID    string  `json:"id"`
	State string  `json:"state"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Link is a stable graph edge bound to its resolved endpoint nodes.
type Link struct {
	Key      string `json:"key"`
	SourceID string `json:"source"`
	TargetID string `json:"target"`
	Amount   int64  `json:"amount"`
	Count    int    `json:"count"`

	Source *Node `json:"-"`
	Target *Node `json:"-"`
}

// StableGraph is the reconciled view handed to the rendering layer. Node
// and link pointers stay valid across calls for entities that persist.
type StableGraph struct {
	Nodes []*Node `json:"nodes"`
	Links []*Link `json:"links"`
}

// Transition is one observed node state change.
type Transition struct {
	NodeID string
	From   string
	To     string
}

// Result carries the reconciled graph plus the change signals the caller
// uses to reheat the physics simulation and schedule visual effects.
type Result struct {
	Graph           StableGraph
	TopologyChanged bool
	StateChanged    bool
	Transitions     []Transition
	NewlySuspicious []string
}

type position struct {
	x, y float64
}

// Reconciler owns the identity and position caches for one dashboard
// instance. It is not safe for concurrent use; the owner serializes calls.
type Reconciler struct {
	cfg classify.Config

	nodes      map[string]*Node
	links      map[string]*Link
	positions  map[string]position
	laidOut    map[string]bool
	lastState  map[string]string
	suspicious map[string]bool
}

// New returns an empty reconciler using cfg for link suspicion.
func New(cfg classify.Config) *Reconciler {
	return &Reconciler{
		cfg:        cfg,
		nodes:      make(map[string]*Node),
		links:      make(map[string]*Link),
		positions:  make(map[string]position),
		laidOut:    make(map[string]bool),
		lastState:  make(map[string]string),
		suspicious: make(map[string]bool),
	}
}

// LinkKey builds the canonical key of a directed edge.
func LinkKey(source, target string) string {
	return source + "→" + target
}

// Reconcile merges an incoming snapshot into the previously reconciled
// structure. Nodes and links that persist keep their object identity;
// links with a dangling endpoint are dropped. Calling Reconcile twice with
// identical snapshots is idempotent: same pointers, no change flags, no
// new suspicions.
func (r *Reconciler) Reconcile(snap models.GraphData) Result {
	// Remember where every laid-out node sits before merging, so nodes
	// that vanish and later reappear resume at their old spot instead of
	// spawning at the origin. Nodes the renderer never positioned carry
	// only zero values, which must not be mistaken for a layout.
	for id, n := range r.nodes {
		if r.laidOut[id] {
			r.positions[id] = position{n.X, n.Y}
		}
	}

	nextNodes := make(map[string]*Node, len(snap.Nodes))
	nodeList := make([]*Node, 0, len(snap.Nodes))
	var transitions []Transition
	for _, in := range snap.Nodes {
		if _, dup := nextNodes[in.ID]; dup {
			continue
		}
		n, existed := r.nodes[in.ID]
		if existed {
			n.State = in.State
			n.Label = in.Label
		} else {
			n = &Node{ID: in.ID, State: in.State, Label: in.Label}
			if pos, seen := r.positions[in.ID]; seen {
				n.X, n.Y = pos.x, pos.y
			}
		}
		nextNodes[in.ID] = n
		nodeList = append(nodeList, n)

		if prev, seen := r.lastState[in.ID]; seen && prev != in.State {
			transitions = append(transitions, Transition{NodeID: in.ID, From: prev, To: in.State})
		}
		r.lastState[in.ID] = in.State
	}

	nextLinks := make(map[string]*Link, len(snap.Links))
	linkList := make([]*Link, 0, len(snap.Links))
	nextSuspicious := make(map[string]bool, len(snap.Links))
	var newlySuspicious []string
	for _, in := range snap.Links {
		src, okSrc := nextNodes[in.Source]
		dst, okDst := nextNodes[in.Target]
		if !okSrc || !okDst {
			// Dangling endpoint: expected steady-state on reconnection,
			// not an error.
			continue
		}
		key := LinkKey(in.Source, in.Target)
		if _, dup := nextLinks[key]; dup {
			continue
		}
		l, existed := r.links[key]
		if existed {
			l.Amount = in.Amount
			l.Count = in.Count
			l.Source = src
			l.Target = dst
		} else {
			l = &Link{
				Key:      key,
				SourceID: in.Source,
				TargetID: in.Target,
				Amount:   in.Amount,
				Count:    in.Count,
				Source:   src,
				Target:   dst,
			}
		}
		nextLinks[key] = l
		linkList = append(linkList, l)

		sus := r.cfg.ClassifyLink(in)
		nextSuspicious[key] = sus
		if sus && !r.suspicious[key] {
			newlySuspicious = append(newlySuspicious, key)
		}
	}

	topologyChanged := !sameKeys(nextNodes, r.nodes) || !sameLinkKeys(nextLinks, r.links)

	r.nodes = nextNodes
	r.links = nextLinks
	r.suspicious = nextSuspicious

	return Result{
		Graph:           StableGraph{Nodes: nodeList, Links: linkList},
		TopologyChanged: topologyChanged,
		StateChanged:    len(transitions) > 0,
		Transitions:     transitions,
		NewlySuspicious: newlySuspicious,
	}
}

// Position reports the last known coordinates of a node id, including
// nodes currently absent from the reconciled graph. A node that was never
// laid out has no position, even while it is live.
func (r *Reconciler) Position(id string) (x, y float64, ok bool) {
	if n, live := r.nodes[id]; live && r.laidOut[id] {
		return n.X, n.Y, true
	}
	pos, seen := r.positions[id]
	return pos.x, pos.y, seen
}

// SetPosition records renderer-assigned coordinates for a live node.
// Unknown ids are ignored.
func (r *Reconciler) SetPosition(id string, x, y float64) {
	if n, ok := r.nodes[id]; ok {
		n.X, n.Y = x, y
		r.laidOut[id] = true
	}
}

func sameKeys(a, b map[string]*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sameLinkKeys(a, b map[string]*Link) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
