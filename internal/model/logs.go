package model

// LogNode is one entry in the backend's log directory tree.
type LogNode struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Path     string    `json:"path,omitempty"`
	Children []LogNode `json:"children,omitempty"`
}

// Files flattens the tree into file paths, depth first.
func (n LogNode) Files() []string {
	if n.Type == "file" {
		p := n.Path
		if p == "" {
			p = n.Name
		}
		return []string{p}
	}
	var out []string
	for _, c := range n.Children {
		out = append(out, c.Files()...)
	}
	return out
}
