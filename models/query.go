package models

// FindNode returns the node with the given ID from the frame
func (f Frame) FindNode(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// FindEdge returns the edge with the given ID from the frame
func (f Frame) FindEdge(id string) (*Edge, bool) {
	for i := range f.Edges {
		if f.Edges[i].ID == id {
			return &f.Edges[i], true
		}
	}
	return nil, false
}

// ConnectedNodes returns the IDs of all nodes sharing an edge with nodeID
func (f Frame) ConnectedNodes(nodeID string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, e := range f.Edges {
		var other string
		switch nodeID {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			result = append(result, other)
		}
	}
	return result
}

// Extent returns the bounding rectangle of all node positions. ok is false for
// an empty frame.
func (f Frame) Extent() (minX, minY, maxX, maxY float64, ok bool) {
	if len(f.Nodes) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = f.Nodes[0].X, f.Nodes[0].Y
	maxX, maxY = minX, minY
	for _, n := range f.Nodes[1:] {
		minX = min(minX, n.X)
		minY = min(minY, n.Y)
		maxX = max(maxX, n.X)
		maxY = max(maxY, n.Y)
	}
	return minX, minY, maxX, maxY, true
}
