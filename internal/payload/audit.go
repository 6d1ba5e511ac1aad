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

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// auditEntryHash covers the entry's identity fields plus the previous
// entry's hash, so editing or reordering any historical entry breaks
// every hash after it.
// Formula: SHA256(Action || Actor || Timestamp(RFC3339Nano) || PrevHash).
func auditEntryHash(e AuditEntry) string {
	h := sha256.New()
	h.Write([]byte(e.Action))
	h.Write([]byte(e.Actor))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.PrevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// AppendChainedAudit appends an audit entry whose hash is chained to the
// previous entry's. Plain RecordRelationshipChange-style appends and
// chained appends may be mixed; the chain links to the most recent entry
// that carries a hash (or starts fresh if none does).
func (p *Payload) AppendChainedAudit(action, actor string, details map[string]any) {
	entry := AuditEntry{
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
	for i := len(p.AuditTrail) - 1; i >= 0; i-- {
		if p.AuditTrail[i].Hash != "" {
			entry.PrevHash = p.AuditTrail[i].Hash
			break
		}
	}
	entry.Hash = auditEntryHash(entry)
	p.AuditTrail = append(p.AuditTrail, entry)
}

// VerifyAuditChain checks every hashed entry in the trail against its
// recorded hash and its link to the preceding hashed entry. Entries
// without hashes (plain appends) are ignored. Returns true for a trail
// with no hashed entries.
func VerifyAuditChain(entries []AuditEntry) bool {
	prev := ""
	for _, e := range entries {
		if e.Hash == "" {
			continue
		}
		if e.PrevHash != prev {
			return false
		}
		if auditEntryHash(e) != e.Hash {
			return false
		}
		prev = e.Hash
	}
	return true
}
