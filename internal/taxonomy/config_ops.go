// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import "strings"

// GetCategoryByPath walks the tree from cfg's roots to find the node at
// full_path, or nil if no such node exists.
func (cfg *Config) GetCategoryByPath(fullPath string) *Node {
	parts := strings.Split(strings.Trim(fullPath, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil
	}

	node, ok := cfg.Categories[parts[0]]
	if !ok {
		return nil
	}
	for _, part := range parts[1:] {
		child, ok := node.Children[part]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// ValidatePath reports whether full_path names an existing node.
func (cfg *Config) ValidatePath(fullPath string) bool {
	return cfg.GetCategoryByPath(fullPath) != nil
}

// GetAllPaths enumerates every node's full path via depth-first traversal.
func (cfg *Config) GetAllPaths() []string {
	var paths []string
	var walk func(n *Node)
	walk = func(n *Node) {
		paths = append(paths, n.FullPath())
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, root := range cfg.Categories {
		walk(root)
	}
	return paths
}
