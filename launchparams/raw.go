// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import "net/url"

type form uint8

const (
	stringForm form = iota + 1
	valuesForm
)

// Raw is untrusted launch-parameter input in one of two forms. Build it
// with FromString or FromValues; the zero Raw canonicalizes to nothing.
type Raw struct {
	form   form
	text   string
	values url.Values
}

// FromString wraps a header value, a query string, or a whole URL.
func FromString(text string) Raw {
	return Raw{form: stringForm, text: text}
}

// FromValues wraps a query already parsed by net/http.
func FromValues(values url.Values) Raw {
	return Raw{form: valuesForm, values: values}
}

// IsZero reports whether raw carries no input at all.
func (r Raw) IsZero() bool {
	switch r.form {
	case stringForm:
		return r.text == ""
	case valuesForm:
		return len(r.values) == 0
	default:
		return true
	}
}
