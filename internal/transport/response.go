package transport

import (
	"encoding/json"
	"fmt"
)

// responseNode mirrors payloadNode on the read side. pv is kept as raw
// JSON because the firmware mixes hex strings, numbers and arrays in
// the same field position (week_power carries plain integers).
type responseNode struct {
	PN  string          `json:"pn"`
	PV  json.RawMessage `json:"pv,omitempty"`
	PCH []responseNode  `json:"pch,omitempty"`
}

type subResponse struct {
	FR  string        `json:"fr"`  // resource the answer belongs to
	RSC int           `json:"rsc"` // device status code
	PC  *responseNode `json:"pc,omitempty"`
}

type multiResponse struct {
	Responses []subResponse `json:"responses"`
}

// Device status codes observed in the wild. 2000/2004 are success,
// 4000 means the write was refused (out-of-range set-point, wrong mode).
const (
	rscOK       = 2000
	rscOKNoop   = 2004
	rscRejected = 4000
)

// checkStatus validates every sub-response status code.
func (m *multiResponse) checkStatus() error {
	if len(m.Responses) == 0 {
		return fmt.Errorf("%w: empty multireq response", ErrProtocol)
	}
	for _, r := range m.Responses {
		switch r.RSC {
		case rscOK, rscOKNoop, 0:
		case rscRejected:
			return fmt.Errorf("%w: %s (rsc %d)", ErrRejected, r.FR, r.RSC)
		default:
			return fmt.Errorf("%w: %s answered rsc %d", ErrProtocol, r.FR, r.RSC)
		}
	}
	return nil
}

// response returns the sub-response for the given resource, or nil.
func (m *multiResponse) response(fr string) *subResponse {
	for i := range m.Responses {
		if m.Responses[i].FR == fr {
			return &m.Responses[i]
		}
	}
	return nil
}

// stringValue walks the pn path below a resource's pc tree and returns
// the leaf pv as a string. ok is false when any hop is missing.
func (m *multiResponse) stringValue(fr string, path ...string) (string, bool) {
	raw, ok := m.rawValue(fr, path...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// numberValue is stringValue for numeric leaves.
func (m *multiResponse) numberValue(fr string, path ...string) (float64, bool) {
	raw, ok := m.rawValue(fr, path...)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// numberSliceValue is stringValue for array leaves (week_power datas).
func (m *multiResponse) numberSliceValue(fr string, path ...string) ([]float64, bool) {
	raw, ok := m.rawValue(fr, path...)
	if !ok {
		return nil, false
	}
	var vs []float64
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, false
	}
	return vs, true
}

func (m *multiResponse) rawValue(fr string, path ...string) (json.RawMessage, bool) {
	sub := m.response(fr)
	if sub == nil || sub.PC == nil || len(path) == 0 {
		return nil, false
	}

	node := sub.PC
	if node.PN != path[0] {
		return nil, false
	}
	for _, pn := range path[1:] {
		var next *responseNode
		for i := range node.PCH {
			if node.PCH[i].PN == pn {
				next = &node.PCH[i]
				break
			}
		}
		if next == nil {
			return nil, false
		}
		node = next
	}
	if node.PV == nil {
		return nil, false
	}
	return node.PV, true
}
