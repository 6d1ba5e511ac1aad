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

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/knowlib/knowlib/internal/integrity"
)

// rawNode mirrors the on-disk shape of one category node, before
// Name/Level/ParentPath are derived from its position in the tree.
type rawNode struct {
	Description  string              `yaml:"description"`
	Locked       bool                `yaml:"locked"`
	Status       CategoryStatus      `yaml:"status,omitempty"`
	ContentCount int                 `yaml:"content_count,omitempty"`
	Children     map[string]*rawNode `yaml:"children,omitempty"`
}

type rawDoc struct {
	Version            string                 `yaml:"version"`
	Classification     ClassificationSettings `yaml:"classification"`
	Categories         map[string]*rawNode    `yaml:"categories"`
	ProposedCategories []*ProposedCategory    `yaml:"proposed_categories"`
	Evolution          EvolutionSettings      `yaml:"evolution"`
}

func parseCategory(name string, raw *rawNode, level int, parentPath string) *Node {
	node := &Node{
		Name:         name,
		Description:  raw.Description,
		Locked:       raw.Locked,
		Level:        level,
		ParentPath:   parentPath,
		Status:       raw.Status,
		ContentCount: raw.ContentCount,
	}
	if node.Status == "" {
		node.Status = StatusActive
	}

	if len(raw.Children) > 0 {
		node.Children = make(map[string]*Node, len(raw.Children))
		for childName, childRaw := range raw.Children {
			node.Children[childName] = parseCategory(childName, childRaw, level+1, node.FullPath())
		}
	}
	return node
}

func nodeToRaw(node *Node) *rawNode {
	raw := &rawNode{
		Description:  node.Description,
		Locked:       node.Locked,
		Status:       node.Status,
		ContentCount: node.ContentCount,
	}
	if len(node.Children) > 0 {
		raw.Children = make(map[string]*rawNode, len(node.Children))
		for name, child := range node.Children {
			raw.Children[name] = nodeToRaw(child)
		}
	}
	return raw
}

// Load reads and parses a taxonomy YAML document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy config not found: %w", err)
	}

	var raw rawDoc
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing taxonomy config: %w", err)
	}

	cfg := &Config{
		Version:            raw.Version,
		Classification:     raw.Classification,
		Categories:         make(map[string]*Node, len(raw.Categories)),
		ProposedCategories: raw.ProposedCategories,
		Evolution:          raw.Evolution,
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	for name, node := range raw.Categories {
		cfg.Categories[name] = parseCategory(name, node, 1, "")
	}
	return cfg, nil
}

// Save atomically writes cfg back out as YAML.
func Save(path string, cfg *Config) error {
	raw := rawDoc{
		Version:            cfg.Version,
		Classification:     cfg.Classification,
		Categories:         make(map[string]*rawNode, len(cfg.Categories)),
		ProposedCategories: cfg.ProposedCategories,
		Evolution:          cfg.Evolution,
	}
	for name, node := range cfg.Categories {
		raw.Categories[name] = nodeToRaw(node)
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshaling taxonomy config: %w", err)
	}
	return integrity.WriteAtomic(path, data)
}
