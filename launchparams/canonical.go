// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

import (
	"sort"
	"strings"
)

// Prefix marks the parameters the host signs.
const Prefix = "vk_"

const signKey = "sign"

// Param is one signed parameter.
type Param struct {
	Key   string
	Value string
}

// Canonical is the signing-relevant subset of a Raw: the vk_ parameters
// sorted by key in byte order, and the sign value if one was present.
type Canonical struct {
	Params  []Param
	Sign    string
	HasSign bool
}

// Canonicalize extracts the vk_ parameters and the sign from raw. It
// never fails: pairs it cannot use are dropped, and verification later
// reports what is missing.
//
// In string form everything up to and including the first '?' is
// discarded, the rest is split on '&', and each segment on its first
// '='. Keys and values are used exactly as written, escapes included,
// since the host signs the text it sends; a segment with no '=' is
// dropped. In values form a key with anything
// other than exactly one value is dropped. A key seen twice keeps its
// last value.
func Canonicalize(raw Raw) Canonical {
	collected := make(map[string]string)
	var canonical Canonical

	accept := func(key, value string) {
		if key == signKey {
			canonical.Sign = value
			canonical.HasSign = true
			return
		}
		if strings.HasPrefix(key, Prefix) {
			collected[key] = value
		}
	}

	switch raw.form {
	case stringForm:
		text := raw.text
		if index := strings.IndexByte(text, '?'); index >= 0 {
			text = text[index+1:]
		}
		for segment := range strings.SplitSeq(text, "&") {
			key, value, found := strings.Cut(segment, "=")
			if found {
				accept(key, value)
			}
		}
	case valuesForm:
		for key, values := range raw.values {
			if len(values) != 1 {
				continue
			}
			accept(key, values[0])
		}
	}

	canonical.Params = make([]Param, 0, len(collected))
	for key, value := range collected {
		canonical.Params = append(canonical.Params, Param{Key: key, Value: value})
	}
	sortParams(canonical.Params)
	return canonical
}

func sortParams(params []Param) {
	sort.Slice(params, func(i, j int) bool { return params[i].Key < params[j].Key })
}

// Get returns the value of a signed parameter.
func (c Canonical) Get(key string) (string, bool) {
	index := sort.Search(len(c.Params), func(i int) bool { return c.Params[i].Key >= key })
	if index < len(c.Params) && c.Params[index].Key == key {
		return c.Params[index].Value, true
	}
	return "", false
}

// String writes c in string form: the signed parameters in order, then
// sign when present, with values unescaped. The result is led by '?'
// when any text contains one, so Canonicalize(FromString(c.String()))
// reproduces c. Values containing '&' cannot be carried this way.
func (c Canonical) String() string {
	var builder strings.Builder
	if c.containsQuestionMark() {
		builder.WriteByte('?')
	}
	for index, param := range c.Params {
		if index > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(param.Key)
		builder.WriteByte('=')
		builder.WriteString(param.Value)
	}
	if c.HasSign {
		if len(c.Params) > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(signKey + "=" + c.Sign)
	}
	return builder.String()
}

func (c Canonical) containsQuestionMark() bool {
	if strings.Contains(c.Sign, "?") {
		return true
	}
	for _, param := range c.Params {
		if strings.Contains(param.Key, "?") || strings.Contains(param.Value, "?") {
			return true
		}
	}
	return false
}
