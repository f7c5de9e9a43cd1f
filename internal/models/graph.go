package models

// GraphNode is one account node of the polled transaction graph snapshot.
type GraphNode struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Label string `json:"label"`
}

// GraphLink is one aggregated transfer edge, keyed by the ordered
// (source, target) pair.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Amount int64  `json:"amount"`
	Count  int    `json:"count"`
}

// GraphData is a complete transaction graph snapshot. Each poll replaces
// the previous snapshot wholesale; reconciliation happens downstream.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
