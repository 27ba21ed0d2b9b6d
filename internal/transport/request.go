package transport

// The BRP084 firmware speaks a single endpoint, /dsiot/multireq, that
// batches sub-requests. op=2 reads a resource tree, op=3 writes
// attributes into it. Attributes live in a nested tree of {pn, pv, pch}
// nodes under a dgc_status root.

// Attribute is one writable leaf in the device's status tree.
type Attribute struct {
	Name  string   // leaf pn, e.g. "p_01"
	Value string   // hex-encoded pv
	Path  []string // intermediate pn nodes, e.g. ["e_1002", "e_3001"]
	To    string   // target resource, e.g. "/dsiot/edge/adr_0100.dgc_status"
}

type payloadNode struct {
	PN  string         `json:"pn"`
	PV  string         `json:"pv,omitempty"`
	PCH []*payloadNode `json:"pch,omitempty"`
}

type subRequest struct {
	Op int          `json:"op"`
	To string       `json:"to"`
	PC *payloadNode `json:"pc,omitempty"`
}

type multiRequest struct {
	Requests []*subRequest `json:"requests"`
}

const (
	opRead  = 2
	opWrite = 3
)

// newReadRequest batches op=2 reads for the given resource paths.
func newReadRequest(resources ...string) *multiRequest {
	req := &multiRequest{}
	for _, to := range resources {
		req.Requests = append(req.Requests, &subRequest{Op: opRead, To: to})
	}
	return req
}

// newWriteRequest folds attributes into one op=3 sub-request per target
// resource, merging shared path prefixes so two attributes under
// e_1002/e_3001 end up as siblings rather than duplicate branches.
func newWriteRequest(attrs ...Attribute) *multiRequest {
	req := &multiRequest{}

	findSub := func(to string) *subRequest {
		for _, sr := range req.Requests {
			if sr.To == to {
				return sr
			}
		}
		return nil
	}

	for _, attr := range attrs {
		sub := findSub(attr.To)
		if sub == nil {
			sub = &subRequest{
				Op: opWrite,
				To: attr.To,
				PC: &payloadNode{PN: "dgc_status"},
			}
			req.Requests = append(req.Requests, sub)
		}

		parent := sub.PC
		for _, pn := range attr.Path {
			var next *payloadNode
			for _, child := range parent.PCH {
				if child.PN == pn {
					next = child
					break
				}
			}
			if next == nil {
				next = &payloadNode{PN: pn}
				parent.PCH = append(parent.PCH, next)
			}
			parent = next
		}
		parent.PCH = append(parent.PCH, &payloadNode{PN: attr.Name, PV: attr.Value})
	}
	return req
}
