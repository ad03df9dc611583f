package compliance

import (
	"fmt"
	"strings"
)

// #region languages

const (
	LanguageEnglish = "en"
	LanguageGreek   = "el"
)

// NormalizeLanguage maps arbitrary caller input to a supported language
// tag. Anything that is not Greek falls back to English.
func NormalizeLanguage(s string) string {
	if strings.ToLower(strings.TrimSpace(s)) == LanguageGreek {
		return LanguageGreek
	}
	return LanguageEnglish
}

// #endregion languages

// #region trigger-rules

// matchMode selects how a term set matches against the message.
type matchMode int

const (
	matchSubstring matchMode = iota
	matchPrefix
)

// termRule is one trigger rule: a named term set plus its match mode.
// Adding a language or a trigger style is a data edit here, not new code.
type termRule struct {
	name  string
	terms []string
	mode  matchMode
}

func (r termRule) matches(lower string) bool {
	for _, t := range r.terms {
		switch r.mode {
		case matchPrefix:
			if strings.HasPrefix(lower, t) {
				return true
			}
		default:
			if strings.Contains(lower, t) {
				return true
			}
		}
	}
	return false
}

var dropIntentRule = termRule{
	name:  "drop-intent",
	terms: []string{"drop", "waive", "cut", "release"},
	mode:  matchSubstring,
}

var rumorRule = termRule{
	name: "rumor-speculation",
	terms: []string{
		"rumor", "rumour", "unverified", "acl", "injury", "tore", "rupture",
	},
	mode: matchSubstring,
}

var certaintyRule = termRule{
	name: "absolute-certainty",
	terms: []string{
		"100% certainty", "exact minute", "exact second",
		"guaranteed", "without doubt", "predict with",
	},
	mode: matchSubstring,
}

var availabilityRule = termRule{
	name: "availability",
	terms: []string{
		"injury", "injuries", "gtd", "dtd", "questionable", "out",
		"doubtful", "ofs", "availability", "day-to-day", "sspd", "suspended",
	},
	mode: matchSubstring,
}

// #endregion trigger-rules

// #region classify

// Obligations are the compliance duties derived from one user message.
type Obligations struct {
	MustAssertDoNotDrop      bool
	MustCalibrateUncertainty bool
}

// Any reports whether either obligation holds.
func (o Obligations) Any() bool {
	return o.MustAssertDoNotDrop || o.MustCalibrateUncertainty
}

// Tags lists the held obligations as stable audit identifiers.
func (o Obligations) Tags() []string {
	var tags []string
	if o.MustAssertDoNotDrop {
		tags = append(tags, "assert-do-not-drop")
	}
	if o.MustCalibrateUncertainty {
		tags = append(tags, "calibrate-uncertainty")
	}
	return tags
}

// Classify derives obligations from the INPUT message alone, before any
// model output exists. Matching is lowercased substring containment; the
// imprecision ("out" inside "outstanding") is a known property of the
// rules, tuned by term choice rather than word boundaries.
//
// The drop obligation requires both drop intent and rumor/speculation
// context; a drop obligation always implies the calibration obligation.
func Classify(message string) Obligations {
	lower := strings.ToLower(strings.TrimSpace(message))

	drop := dropIntentRule.matches(lower) && rumorRule.matches(lower)
	calibrate := drop || certaintyRule.matches(lower) || availabilityRule.matches(lower)

	return Obligations{
		MustAssertDoNotDrop:      drop,
		MustCalibrateUncertainty: calibrate,
	}
}

// Required is the fast-path predicate: does this request need compliance
// processing at all. Greek responses always do, because the language lock
// applies regardless of topic. Enforcement re-derives obligations itself,
// so a caller that skips this check loses nothing but speed.
func Required(message, language string) bool {
	return NormalizeLanguage(language) == LanguageGreek || Classify(message).Any()
}

// #endregion classify

// #region contract

// BuildContract renders obligations as instruction text for the system
// prompt, so the model is told its duties before generating. Enforcement
// still verifies the final text; this is the cooperative half of the same
// rules. Returns "" when nothing applies.
func BuildContract(o Obligations, language string) string {
	lang := NormalizeLanguage(language)

	var rules []string
	if o.MustAssertDoNotDrop {
		rules = append(rules, fmt.Sprintf(
			"The user is weighing a drop decision against unverified injury talk. "+
				"Tell them clearly not to drop the player until the report is verified, "+
				"and include the exact phrase %q.", dropPhraseFor(lang)))
	}
	if o.MustCalibrateUncertainty {
		rules = append(rules, fmt.Sprintf(
			"Do not claim exact return dates or certainty about availability. "+
				"Close your answer with this exact sentence: %q", Boilerplate(lang)))
	}
	if lang == LanguageGreek {
		rules = append(rules, "Respond entirely in Greek. Every sentence of your answer must be in Greek.")
	}
	if len(rules) == 0 {
		return ""
	}
	return "[COMPLIANCE RULES]\n- " + strings.Join(rules, "\n- ")
}

// #endregion contract
