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
	"time"

	"github.com/knowlib/knowlib/internal/errs"
	"github.com/knowlib/knowlib/internal/payload"
	"github.com/knowlib/knowlib/pkg/logging"
)

// Manager owns the taxonomy lifecycle: loading, validation, and
// evolution via category proposals.
type Manager struct {
	configPath string
	config     *Config
	dirty      bool
	logger     *logging.Logger
}

// NewManager constructs a Manager pointed at configPath; Load must be
// called before any other method.
func NewManager(configPath string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{configPath: configPath, logger: logger}
}

// Load reads the taxonomy document from disk.
func (m *Manager) Load() error {
	cfg, err := Load(m.configPath)
	if err != nil {
		return err
	}
	m.config = cfg
	m.logger.Info("loaded taxonomy", "root_categories", len(cfg.Categories))
	return nil
}

// Save persists the current taxonomy document and clears the dirty
// flag. A clean document is not rewritten.
func (m *Manager) Save() error {
	if m.config == nil {
		return fmt.Errorf("taxonomy not loaded")
	}
	if !m.dirty {
		return nil
	}
	if err := Save(m.configPath, m.config); err != nil {
		return err
	}
	m.dirty = false
	m.logger.Info("saved taxonomy", "path", m.configPath)
	return nil
}

// NeedsSave reports whether the taxonomy has unsaved changes.
func (m *Manager) NeedsSave() bool {
	return m.dirty
}

func (m *Manager) requireLoaded() error {
	if m.config == nil {
		return fmt.Errorf("taxonomy not loaded")
	}
	return nil
}

// ValidatePath reports whether path names an existing node.
func (m *Manager) ValidatePath(path string) (bool, error) {
	if err := m.requireLoaded(); err != nil {
		return false, err
	}
	return m.config.ValidatePath(path), nil
}

// GetCategory returns the node at path, or nil if it doesn't exist.
func (m *Manager) GetCategory(path string) (*Node, error) {
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}
	return m.config.GetCategoryByPath(path), nil
}

// ClassificationSettings returns the taxonomy document's classification
// thresholds.
func (m *Manager) ClassificationSettings() (ClassificationSettings, error) {
	if err := m.requireLoaded(); err != nil {
		return ClassificationSettings{}, err
	}
	return m.config.Classification, nil
}

// GetAllPaths enumerates every valid taxonomy path.
func (m *Manager) GetAllPaths() ([]string, error) {
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}
	return m.config.GetAllPaths(), nil
}

// ProposeCategory validates the proposal's parent and either auto-
// approves it into the live tree or queues it as pending. The parent
// must exist and be at level >= 2; auto-approval additionally requires
// confidence >= the new-category threshold and auto_approve_level3_plus.
func (m *Manager) ProposeCategory(p Proposal) (*ProposedCategory, error) {
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}

	parent := m.config.GetCategoryByPath(p.ParentPath)
	if parent == nil {
		return nil, errs.New(errs.KindProposalRejected, fmt.Sprintf("parent path not found: %s", p.ParentPath))
	}
	if parent.Level < 2 {
		return nil, errs.New(errs.KindProposalRejected, fmt.Sprintf("cannot propose category under level 1, parent level: %d", parent.Level))
	}

	confidence := payload.NormalizeConfidence(p.Confidence, true)
	proposed := &ProposedCategory{
		Path:        p.ParentPath + "/" + p.Name,
		Name:        p.Name,
		Description: p.Description,
		ParentPath:  p.ParentPath,
		Confidence:  confidence,
		Evidence:    p.EvidenceIDs,
		ProposedAt:  time.Now().UTC(),
		ProposedBy:  "ai",
		Status:      ProposalPending,
	}

	thresholds := m.config.Classification
	if confidence >= thresholds.NewCategoryConfidenceThreshold && thresholds.AutoApproveLevel3Plus && parent.Level >= 2 {
		return m.approveCategory(proposed, parent)
	}

	m.config.ProposedCategories = append(m.config.ProposedCategories, proposed)
	m.dirty = true
	m.logger.Info("proposed new category", "path", proposed.Path, "confidence", proposed.Confidence)
	return proposed, nil
}

func (m *Manager) approveCategory(proposed *ProposedCategory, parent *Node) (*ProposedCategory, error) {
	now := time.Now().UTC()
	newNode := &Node{
		Name:        proposed.Name,
		Description: proposed.Description,
		Locked:      false,
		Status:      StatusActive,
		CreatedAt:   &now,
		CreatedBy:   proposed.ProposedBy,
	}
	parent.AddChild(newNode)

	proposed.Status = ProposalApproved
	m.dirty = true
	m.logger.Info("auto-approved category", "path", proposed.Path)
	return proposed, nil
}

// ApproveProposal manually approves a pending proposal at path.
func (m *Manager) ApproveProposal(path, reviewNotes string) (bool, error) {
	if err := m.requireLoaded(); err != nil {
		return false, err
	}

	for _, proposed := range m.config.ProposedCategories {
		if proposed.Path == path && proposed.Status == ProposalPending {
			proposed.ReviewNotes = reviewNotes
			parent := m.config.GetCategoryByPath(proposed.ParentPath)
			if parent == nil {
				return false, fmt.Errorf("parent path not found: %s", proposed.ParentPath)
			}
			if _, err := m.approveCategory(proposed, parent); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RejectProposal rejects a pending proposal at path, recording reason.
func (m *Manager) RejectProposal(path, reason string) (bool, error) {
	if err := m.requireLoaded(); err != nil {
		return false, err
	}

	for _, proposed := range m.config.ProposedCategories {
		if proposed.Path == path && proposed.Status == ProposalPending {
			proposed.Status = ProposalRejected
			proposed.ReviewNotes = reason
			m.dirty = true
			m.logger.Info("rejected category proposal", "path", path, "reason", reason)
			return true, nil
		}
	}
	return false, nil
}

// GetPendingProposals returns every proposal still awaiting review.
func (m *Manager) GetPendingProposals() ([]*ProposedCategory, error) {
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}
	var pending []*ProposedCategory
	for _, p := range m.config.ProposedCategories {
		if p.Status == ProposalPending {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// UpdateContentCount adjusts a category's tracked content count by delta.
func (m *Manager) UpdateContentCount(path string, delta int) error {
	if err := m.requireLoaded(); err != nil {
		return err
	}
	node := m.config.GetCategoryByPath(path)
	if node == nil {
		return nil
	}
	node.ContentCount += delta
	m.dirty = true
	return nil
}
