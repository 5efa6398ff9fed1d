// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package launchparams

// Language is a vk_language value the host is known to send.
type Language string

const (
	Russian    Language = "ru"
	Ukrainian  Language = "uk"
	UkrainianA Language = "ua"
	Belarusian Language = "be"
	English    Language = "en"
	Spanish    Language = "es"
	Finnish    Language = "fi"
	German     Language = "de"
	Italian    Language = "it"
	Kazakh     Language = "kz"
	Portuguese Language = "pt"
)

var knownLanguages = map[Language]bool{
	Russian: true, Ukrainian: true, UkrainianA: true, Belarusian: true,
	English: true, Spanish: true, Finnish: true, German: true,
	Italian: true, Kazakh: true, Portuguese: true,
}

// ParseLanguage reports whether value is a known language code. Codes
// are case-sensitive.
func ParseLanguage(value string) (Language, bool) {
	language := Language(value)
	return language, knownLanguages[language]
}
