package shortest

import (
	"errors"
	"fmt"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/graph"
)

var (
	// ErrCorruptNextHop means the next-hop table could not have been produced
	// by a correct run: a walk cycled or stepped outside the node range.
	ErrCorruptNextHop = errors.New("shortest: corrupt next-hop table")

	// ErrNodeOutOfRange is returned for endpoints that are not nodes.
	ErrNodeOutOfRange = errors.New("shortest: node out of range")
)

// Path is an ordered node sequence from source to target.
type Path []graph.NodeID

// Valid reports whether the path describes a route, i.e. has at least two nodes.
func (p Path) Valid() bool { return len(p) >= 2 }

// Stops returns the number of intermediate nodes.
func (p Path) Stops() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 2
}

// Path reconstructs the node sequence from src to dst. An unreachable pair
// yields an empty path and a nil error; src == dst yields a single node.
func (r *Result) Path(src, dst graph.NodeID) (Path, error) {
	if !r.contains(src) || !r.contains(dst) {
		return nil, fmt.Errorf("%w: %d→%d", ErrNodeOutOfRange, src, dst)
	}
	if src == dst {
		return Path{src}, nil
	}

	path := Path{src}
	cur := src
	for steps := 0; cur != dst; steps++ {
		if steps >= r.n {
			return nil, fmt.Errorf("%w: %d→%d exceeds %d steps", ErrCorruptNextHop, src, dst, r.n)
		}
		hop := r.NextHop(cur, dst)
		if hop == NoHop {
			return nil, nil
		}
		if !r.contains(hop) {
			return nil, fmt.Errorf("%w: hop %d from %d", ErrCorruptNextHop, hop, cur)
		}
		path = append(path, hop)
		cur = hop
	}
	return path, nil
}
