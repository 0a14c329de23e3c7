package hierarchy

import (
	"strings"

	"github.com/treeline-dev/treeline/internal/types"
)

// CycleError reports a parent-reference chain that loops back on itself.
// Chain lists the uids along the cycle in reference order, ending with the
// uid that closed the loop.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "parent reference cycle: " + strings.Join(e.Chain, " -> ")
}

// dfs colors for cycle detection.
const (
	colorUnvisited = iota
	colorInProgress
	colorDone
)

// DetectCycle walks the child-to-parent reference graph and fails if any
// chain revisits a node still on the current path. Level building assumes a
// DAG, so this must run first.
func DetectCycle(records []types.Record, refs *Refs) error {
	if !refs.HasUIDs {
		return nil
	}

	// child uid -> parent uid, only for parents that resolve to a row here.
	parentOf := make(map[string]string)
	for i, rec := range records {
		uid, ok := refs.ByIndex[i]
		if !ok {
			continue
		}
		if parent, ok := refs.ParentUID(rec); ok {
			parentOf[uid] = parent
		}
	}

	color := make(map[string]int, len(parentOf))
	for start := range parentOf {
		if color[start] != colorUnvisited {
			continue
		}

		// Iterative walk up the parent chain. Each node has at most one
		// outgoing edge, so the in-progress path is exactly the stack.
		var path []string
		node := start
		for {
			switch color[node] {
			case colorDone:
				// Joins an already-cleared chain.
			case colorInProgress:
				// Found the repeated node: the cycle is the path from
				// its first occurrence, closed with the node itself.
				at := 0
				for i, n := range path {
					if n == node {
						at = i
						break
					}
				}
				chain := append(append([]string{}, path[at:]...), node)
				return &CycleError{Chain: chain}
			default:
				color[node] = colorInProgress
				path = append(path, node)
				if next, ok := parentOf[node]; ok {
					node = next
					continue
				}
			}
			break
		}

		for _, n := range path {
			color[n] = colorDone
		}
	}

	return nil
}
