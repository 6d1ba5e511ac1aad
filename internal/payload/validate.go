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
	"regexp"

	"github.com/go-playground/validator/v10"
)

// payloadValidate is the validator instance for payload datatypes.
// Initialized in init() with custom validators.
var payloadValidate *validator.Validate

// taxonomyPathRe matches slash-separated lowercase slugs
// (e.g. "technical/programming/python").
var taxonomyPathRe = regexp.MustCompile(`^[a-z0-9_-]+(/[a-z0-9_-]+)*$`)

func init() {
	payloadValidate = validator.New()

	_ = payloadValidate.RegisterValidation("taxonomypath", validateTaxonomyPath)
}

// validateTaxonomyPath accepts an empty path (unclassified content) or a
// slash-separated slug path.
func validateTaxonomyPath(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return taxonomyPathRe.MatchString(s)
}

// Validate checks p against its struct tags. Stores call this before
// accepting an upsert so malformed payloads never reach the collection.
func (p Payload) Validate() error {
	return payloadValidate.Struct(p)
}
