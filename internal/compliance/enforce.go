package compliance

import (
	"strings"
)

// #region sentences

// Fixed, language-keyed sentences appended by enforcement. These are
// product copy: the golden dataset asserts against them, so changing one
// is a behavior change, not a wording tweak.
const (
	hedgePhrase = "insufficient verified status data"

	safetyEN      = "Do not drop a player over an unverified report; wait for confirmed injury news first."
	denialEN      = "No verified source confirms this report, so do not drop the player based on rumor alone."
	boilerplateEN = "Injury timelines are uncertain; check the latest official team reports before locking in your lineup."

	safetyEL      = "Μην κάνεις drop παίκτη με βάση ανεπιβεβαίωτες φήμες· περίμενε επίσημη ενημέρωση για τον τραυματισμό."
	denialEL      = "Καμία έγκυρη πηγή δεν επιβεβαιώνει αυτή την αναφορά, οπότε μην κάνεις drop τον παίκτη μόνο λόγω φημών."
	boilerplateEL = "Τα χρονοδιαγράμματα επιστροφής είναι αβέβαια· έλεγξε τις επίσημες ανακοινώσεις της ομάδας πριν κλειδώσεις την πεντάδα σου."

	fallbackIntroEL = "Συγγνώμη, δεν μπόρεσα να απαντήσω σωστά στα ελληνικά αυτή τη φορά."
)

// acceptedDropPhrases guard the safety append. The Greek loanword phrasing
// is in the list so Greek output that already asserts the rule is not
// re-stamped on every pass.
var acceptedDropPhrases = []string{"do not drop", "don't drop", "μην κάνεις drop"}

func safetySentence(lang string) string {
	if lang == LanguageGreek {
		return safetyEL
	}
	return safetyEN
}

func denialSentence(lang string) string {
	if lang == LanguageGreek {
		return denialEL
	}
	return denialEN
}

// Boilerplate is the language's uncertainty-calibration sentence. Exported
// because the contract builder quotes it to the model verbatim.
func Boilerplate(lang string) string {
	if NormalizeLanguage(lang) == LanguageGreek {
		return boilerplateEL
	}
	return boilerplateEN
}

func dropPhraseFor(lang string) string {
	if lang == LanguageGreek {
		return "μην κάνεις drop"
	}
	return "do not drop"
}

// #endregion sentences

// #region trace

// Trace records which enforcement rules fired on one output.
type Trace struct {
	Obligations         Obligations
	AppendedSafety      bool
	AppendedDenial      bool
	AppendedBoilerplate bool
	LanguageLock        bool
}

// Applied lists the fired rules as short tags for the audit log.
func (t Trace) Applied() []string {
	var tags []string
	if t.AppendedSafety {
		tags = append(tags, "safety")
	}
	if t.AppendedDenial {
		tags = append(tags, "denial")
	}
	if t.AppendedBoilerplate {
		tags = append(tags, "boilerplate")
	}
	if t.LanguageLock {
		tags = append(tags, "language-lock")
	}
	return tags
}

// #endregion trace

// #region post-process

// PostProcess applies the compliance rules to a complete model output.
// Pure, deterministic, and idempotent: running it on its own output with
// the same trigger message and language returns the text unchanged.
// Obligations are re-derived from triggerMessage internally; callers
// cannot weaken enforcement by passing stale flags. Output that triggers
// nothing comes back trimmed and otherwise byte-identical.
func PostProcess(raw, triggerMessage, language string) string {
	out, _ := PostProcessWithTrace(raw, triggerMessage, language)
	return out
}

// PostProcessWithTrace is PostProcess plus the record of fired rules.
func PostProcessWithTrace(raw, triggerMessage, language string) (string, Trace) {
	lang := NormalizeLanguage(language)
	o := Classify(triggerMessage)
	trace := Trace{Obligations: o}

	out := strings.TrimSpace(raw)
	// The language lock judges the model's own text, before any appends.
	rawHasGreek := ContainsGreek(out)

	if o.MustAssertDoNotDrop && !containsAnyFold(out, acceptedDropPhrases) {
		out = appendSentence(out, safetySentence(lang))
		trace.AppendedSafety = true
	}
	if o.MustAssertDoNotDrop &&
		containsFold(out, hedgePhrase) &&
		!containsFold(out, denialSentence(lang)) {
		out = appendSentence(out, denialSentence(lang))
		trace.AppendedDenial = true
	}
	if o.MustCalibrateUncertainty && !containsFold(out, Boilerplate(lang)) {
		out = appendSentence(out, Boilerplate(lang))
		trace.AppendedBoilerplate = true
	}
	if lang == LanguageGreek && !rawHasGreek {
		out = greekFallback(o)
		trace.LanguageLock = true
	}

	return out, trace
}

// greekFallback is the full-replacement template for the language lock:
// an apology in Greek carrying the uncertainty boilerplate and, when the
// drop obligation holds, the safety sentence. The floor response satisfies
// every duty the original output failed.
func greekFallback(o Obligations) string {
	parts := []string{fallbackIntroEL}
	if o.MustAssertDoNotDrop {
		parts = append(parts, safetyEL)
	}
	parts = append(parts, boilerplateEL)
	return strings.Join(parts, " ")
}

// #endregion post-process

// #region helpers

// ContainsGreek reports whether s contains at least one character in the
// Greek and Coptic block (U+0370..U+03FF) or the Greek Extended block
// (U+1F00..U+1FFF).
func ContainsGreek(s string) bool {
	for _, r := range s {
		if (r >= 0x0370 && r <= 0x03ff) || (r >= 0x1f00 && r <= 0x1fff) {
			return true
		}
	}
	return false
}

// containsFold is a case-insensitive substring check.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsAnyFold(s string, phrases []string) bool {
	lower := strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// appendSentence adds a compliance sentence as its own paragraph.
func appendSentence(out, sentence string) string {
	if out == "" {
		return sentence
	}
	return out + "\n\n" + sentence
}

// #endregion helpers
