package usecase

import (
	"regexp"

	caldomain "github.com/allan-cais/besunny-ai-sub007/internal/calendar/domain"
)

// Free-text conferencing URL patterns, tried in order after the structured
// fields. Ordering matters: the first match wins.
var meetingURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://meet\.google\.com/[a-z]{3}-[a-z]{4}-[a-z]{3}`),
	regexp.MustCompile(`https://[a-zA-Z0-9.-]*zoom\.us/j/[0-9]+(?:\?pwd=[a-zA-Z0-9._-]+)?`),
	regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[a-zA-Z0-9%._/=-]+`),
	regexp.MustCompile(`https://[a-zA-Z0-9.-]*webex\.com/(?:meet|join)/[a-zA-Z0-9._-]+`),
}

// ResolveMeetingURL extracts the conferencing URL from an event. Structured
// fields take precedence over free text so a pasted agenda link never shadows
// the real dial-in.
func ResolveMeetingURL(event *caldomain.RemoteEvent) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceURI != "" {
		return event.ConferenceURI
	}
	for _, pattern := range meetingURLPatterns {
		if match := pattern.FindString(event.Location); match != "" {
			return match
		}
		if match := pattern.FindString(event.Description); match != "" {
			return match
		}
	}
	return ""
}
