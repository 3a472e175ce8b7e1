package provisioning

import (
	"fmt"
	"sync"
)

// Node is the provisioned state of one instance.
type Node struct {
	Name       string
	InstanceID string
	PrivateIP  string
	PublicIP   string
}

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	mu sync.Mutex

	// Network results (populated by the network phase)
	VPCID           string
	GatewayID       string
	SubnetID        string
	RouteTableID    string
	AssociationID   string
	SecurityGroupID string

	// Compute results (populated by the compute phase)
	KeyName string
	ImageID string
	Head    *Node
	workers map[int]*Node // 1-based index -> node
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{
		workers: make(map[int]*Node),
	}
}

// SetWorker records worker index. Safe for concurrent use.
func (s *State) SetWorker(index int, n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[index] = n
}

// Worker returns worker index, or nil.
func (s *State) Worker(index int) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[index]
}

// Workers returns workers 1..count in order. It fails if any is missing.
func (s *State) Workers(count int) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Node, 0, count)
	for i := 1; i <= count; i++ {
		n, ok := s.workers[i]
		if !ok {
			return nil, fmt.Errorf("worker %d has not been provisioned", i)
		}
		out = append(out, n)
	}
	return out, nil
}
