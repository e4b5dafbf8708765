package dom

// Snapshot is the serialized form of one element as captured by a host at
// interaction time.
type Snapshot struct {
	Tag        string  `json:"tag"`
	Attributes []Attr  `json:"attributes"`
	Text       string  `json:"text"`
	Value      *string `json:"value,omitempty"`
}

// FromChain rebuilds an ancestor chain captured target-first. It returns
// the target node with parents linked, or nil for an empty chain.
func FromChain(chain []Snapshot) *Node {
	if len(chain) == 0 {
		return nil
	}
	nodes := make([]*Node, len(chain))
	for i, snapshot := range chain {
		nodes[i] = &Node{
			Tag:      snapshot.Tag,
			Attrs:    snapshot.Attributes,
			TextBody: snapshot.Text,
			Val:      snapshot.Value,
		}
	}
	for i := len(nodes) - 1; i > 0; i-- {
		nodes[i].Append(nodes[i-1])
	}
	return nodes[0]
}
