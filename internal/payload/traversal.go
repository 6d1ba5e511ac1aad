// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payload

import "sort"

// Graph-traversal queries over the relationship edge table: dependency
// and implementation chains, multi-hop neighborhoods, shortest paths,
// and orphan detection. The table materializes inverses, so every
// logical link is reachable from either endpoint.

// Outgoing returns edges whose source is contentID, optionally filtered
// by kind (empty kind matches all), sorted by target id then kind.
func (t *EdgeTable) Outgoing(contentID string, kind RelationshipKind) []Relationship {
	var out []Relationship
	for _, r := range t.edges {
		if r.SourceID != contentID {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, r)
	}
	sortEdges(out)
	return out
}

// Incoming returns edges whose target is contentID, optionally filtered
// by kind, sorted by source id then kind.
func (t *EdgeTable) Incoming(contentID string, kind RelationshipKind) []Relationship {
	var out []Relationship
	for _, r := range t.edges {
		if r.TargetID != contentID {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func sortEdges(edges []Relationship) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].TargetID != edges[j].TargetID {
			return edges[i].TargetID < edges[j].TargetID
		}
		return edges[i].Kind < edges[j].Kind
	})
}

// DependencyChains follows depends_on edges from contentID and returns
// every complete chain, each as an ordered list of content ids starting
// with contentID. A chain ends at a node with no outgoing edge of the
// kind, or where an edge leads back into the chain (a cycle; the repeated
// node is not appended). Chains cut off by maxDepth are dropped.
func (t *EdgeTable) DependencyChains(contentID string, maxDepth int) [][]string {
	return t.chains(contentID, DependsOn, maxDepth)
}

// ImplementationChains follows implements edges the same way.
func (t *EdgeTable) ImplementationChains(contentID string, maxDepth int) [][]string {
	return t.chains(contentID, Implements, maxDepth)
}

func (t *EdgeTable) chains(contentID string, kind RelationshipKind, maxDepth int) [][]string {
	var chains [][]string
	visited := make(map[string]bool)

	var traverse func(currentID string, chain []string, depth int)
	traverse = func(currentID string, chain []string, depth int) {
		if depth >= maxDepth {
			return
		}
		if visited[currentID] {
			if len(chain) > 1 {
				chains = append(chains, append([]string(nil), chain...))
			}
			return
		}
		visited[currentID] = true
		defer delete(visited, currentID)

		chain = append(chain, currentID)

		next := t.Outgoing(currentID, kind)
		if len(next) == 0 {
			if len(chain) > 1 {
				chains = append(chains, append([]string(nil), chain...))
			}
			return
		}
		for _, r := range next {
			traverse(r.TargetID, chain, depth+1)
		}
	}

	traverse(contentID, nil, 0)
	return chains
}

// RelatedContent walks up to depth hops out from contentID in either
// direction and returns, for each reachable content id, the edges that
// connect it. kinds, when non-empty, restricts which edges are followed.
func (t *EdgeTable) RelatedContent(contentID string, depth int, kinds []RelationshipKind) map[string][]Relationship {
	allowed := kindSet(kinds)
	result := make(map[string][]Relationship)
	visited := map[string]bool{contentID: true}

	type hop struct {
		id    string
		depth int
	}
	queue := []hop{{contentID, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}

		for _, r := range t.For(current.id) {
			if allowed != nil && !allowed[r.Kind] {
				continue
			}
			otherID := r.TargetID
			if r.SourceID != current.id {
				otherID = r.SourceID
			}

			result[otherID] = append(result[otherID], r)
			if !visited[otherID] {
				visited[otherID] = true
				queue = append(queue, hop{otherID, current.depth + 1})
			}
		}
	}
	return result
}

// FindPath runs a breadth-first search for the shortest relationship
// path between two content ids, at most maxDepth edges long. The second
// return is false when no path exists; a trivial from==to query returns
// an empty path and true.
func (t *EdgeTable) FindPath(fromID, toID string, maxDepth int, kinds []RelationshipKind) ([]Relationship, bool) {
	if fromID == toID {
		return []Relationship{}, true
	}

	allowed := kindSet(kinds)
	visited := map[string]bool{fromID: true}

	type state struct {
		id   string
		path []Relationship
	}
	queue := []state{{fromID, nil}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.path) >= maxDepth {
			continue
		}

		for _, r := range t.For(current.id) {
			if allowed != nil && !allowed[r.Kind] {
				continue
			}
			otherID := r.TargetID
			if r.SourceID != current.id {
				otherID = r.SourceID
			}

			if otherID == toID {
				return append(append([]Relationship(nil), current.path...), r), true
			}
			if !visited[otherID] {
				visited[otherID] = true
				queue = append(queue, state{otherID, append(append([]Relationship(nil), current.path...), r)})
			}
		}
	}
	return nil, false
}

// CommonDependencies returns the content ids every one of contentIDs
// depends on directly, sorted.
func (t *EdgeTable) CommonDependencies(contentIDs []string) []string {
	if len(contentIDs) == 0 {
		return nil
	}

	common := make(map[string]bool)
	for _, r := range t.Outgoing(contentIDs[0], DependsOn) {
		common[r.TargetID] = true
	}
	for _, id := range contentIDs[1:] {
		deps := make(map[string]bool)
		for _, r := range t.Outgoing(id, DependsOn) {
			deps[r.TargetID] = true
		}
		for target := range common {
			if !deps[target] {
				delete(common, target)
			}
		}
	}

	out := make([]string, 0, len(common))
	for id := range common {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DependencyNode is one node of a DependencyTree. Truncated marks nodes
// cut off by the depth bound or by a cycle back into the visited set.
type DependencyNode struct {
	ID           string
	Relationship *Relationship
	Children     []DependencyNode
	Truncated    bool
}

// DependencyTree builds the nested depends_on tree rooted at contentID,
// at most maxDepth levels deep.
func (t *EdgeTable) DependencyTree(contentID string, maxDepth int) DependencyNode {
	var build func(currentID string, depth int, visited map[string]bool) DependencyNode
	build = func(currentID string, depth int, visited map[string]bool) DependencyNode {
		if depth >= maxDepth || visited[currentID] {
			return DependencyNode{ID: currentID, Truncated: true}
		}
		visited[currentID] = true
		defer delete(visited, currentID)

		var children []DependencyNode
		for _, r := range t.Outgoing(currentID, DependsOn) {
			r := r
			child := build(r.TargetID, depth+1, visited)
			child.Relationship = &r
			children = append(children, child)
		}
		return DependencyNode{ID: currentID, Children: children}
	}
	return build(contentID, 0, make(map[string]bool))
}

// Orphans returns the subset of allContentIDs participating in no
// relationship at all, sorted.
func (t *EdgeTable) Orphans(allContentIDs []string) []string {
	connected := make(map[string]bool, len(t.edges)*2)
	for _, r := range t.edges {
		connected[r.SourceID] = true
		connected[r.TargetID] = true
	}

	var orphans []string
	for _, id := range allContentIDs {
		if !connected[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// RelationshipStats summarizes one content id's participation in the table.
type RelationshipStats struct {
	Total    int
	Outgoing int
	Incoming int
	ByKind   map[RelationshipKind]int
}

// StatsFor counts contentID's edges overall, by direction, and by kind.
func (t *EdgeTable) StatsFor(contentID string) RelationshipStats {
	stats := RelationshipStats{ByKind: make(map[RelationshipKind]int)}
	for _, r := range t.edges {
		if r.SourceID != contentID && r.TargetID != contentID {
			continue
		}
		stats.Total++
		stats.ByKind[r.Kind]++
		if r.SourceID == contentID {
			stats.Outgoing++
		}
		if r.TargetID == contentID {
			stats.Incoming++
		}
	}
	return stats
}

func kindSet(kinds []RelationshipKind) map[RelationshipKind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[RelationshipKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
