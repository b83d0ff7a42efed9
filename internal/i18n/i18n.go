// Package i18n renders the few user-facing strings the API localizes:
// relative ages and keyword mention counts, in English and Korean.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"motion-trends/internal/pipeline"
)

const (
	keyDays     = "%dd ago"
	keyHours    = "%dh ago"
	keyMinutes  = "%dm ago"
	keyJustNow  = "just now"
	keyMentions = "%d mentions"
)

// Supported lists the locales in preference order; the first is the fallback.
var Supported = []language.Tag{language.English, language.Korean}

var matcher = language.NewMatcher(Supported)

func init() {
	for key, msg := range map[string]string{
		keyDays:     "%d일 전",
		keyHours:    "%d시간 전",
		keyMinutes:  "%d분 전",
		keyJustNow:  "방금 전",
		keyMentions: "%d 회 언급",
	} {
		if err := message.SetString(language.Korean, key, msg); err != nil {
			panic(err)
		}
	}
}

// Resolve picks a supported locale. An explicit lang value wins over the
// Accept-Language header; anything unrecognized resolves to English.
func Resolve(lang, acceptLanguage string) language.Tag {
	if lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			return match(tag)
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			return match(tags...)
		}
	}
	return Supported[0]
}

func match(tags ...language.Tag) language.Tag {
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Supported[0]
	}
	return Supported[index]
}

// Localizer formats strings for one locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

func New(tag language.Tag) *Localizer {
	return &Localizer{tag: tag, printer: message.NewPrinter(tag)}
}

func (l *Localizer) Tag() language.Tag { return l.tag }

// Age renders a relative age, e.g. "3d ago" or "3일 전".
func (l *Localizer) Age(a pipeline.Age) string {
	switch a.Unit {
	case pipeline.AgeDays:
		return l.printer.Sprintf(keyDays, a.Count)
	case pipeline.AgeHours:
		return l.printer.Sprintf(keyHours, a.Count)
	case pipeline.AgeMinutes:
		return l.printer.Sprintf(keyMinutes, a.Count)
	}
	return l.printer.Sprintf(keyJustNow)
}

// Mentions renders a keyword count label, e.g. "50 mentions".
func (l *Localizer) Mentions(n int) string {
	return l.printer.Sprintf(keyMentions, n)
}
