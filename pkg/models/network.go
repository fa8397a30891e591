package models

// NetworkRequest describes a bounded expansion around a center entity.
// Zero budgets are valid and yield a network holding only the center.
type NetworkRequest struct {
	Center         Entity      `json:"center"`
	Roles          []Role      `json:"roles,omitempty"`
	Year           *YearFilter `json:"year,omitempty"`
	IncludeAliases bool        `json:"include_aliases"`
	MaxDegree      int         `json:"max_degree" validate:"gte=0,lte=50"`
	MaxNodes       int         `json:"max_nodes" validate:"gte=0,lte=5000"`
	MaxLinks       int         `json:"max_links" validate:"gte=0,lte=10000"`
}

// NetworkNode is an entity admitted into a network.
type NetworkNode struct {
	Key      string     `json:"key"`
	Kind     EntityKind `json:"kind"`
	ID       int64      `json:"id"`
	Name     string     `json:"name,omitempty"`
	Distance int        `json:"distance"`
	// DiscoveredBy is the relation through which the node was first reached.
	// Nil for the center only.
	DiscoveredBy *int64 `json:"discovered_by,omitempty"`
}

// Entity returns the identity of the node.
func (n *NetworkNode) Entity() Entity {
	return Entity{Kind: n.Kind, ID: n.ID}
}

// NetworkLink is a relation between two admitted nodes.
type NetworkLink struct {
	Key       string `json:"key"`
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Role      Role   `json:"role"`
	Year      *int   `json:"year,omitempty"`
	ReleaseID *int64 `json:"release_id,omitempty"`
}

// Network is the deduplicated result of a build. It holds no reference back
// into the store.
type Network struct {
	Center      string        `json:"center"`
	Nodes       []NetworkNode `json:"nodes"`
	Links       []NetworkLink `json:"links"`
	MaxDistance int           `json:"max_distance"`
	Truncated   bool          `json:"truncated"`
}

// NodeByKey returns the node with the given key, if present.
func (n *Network) NodeByKey(key string) (*NetworkNode, bool) {
	for i := range n.Nodes {
		if n.Nodes[i].Key == key {
			return &n.Nodes[i], true
		}
	}
	return nil, false
}
