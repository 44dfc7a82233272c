package directive

import "strings"

// Directive identifies a scaffolding command embedded in chat text.
type Directive string

const (
	ReactApp      Directive = "react_app"
	ExpressServer Directive = "express_server"
)

type trigger struct {
	phrase    string
	directive Directive
}

// Ordered; the first phrase found in the text wins.
var triggers = []trigger{
	{phrase: "create react app", directive: ReactApp},
	{phrase: "create express server", directive: ExpressServer},
	{phrase: "create express app", directive: ExpressServer},
}

// Recognize scans human-authored text for a trigger phrase. Messages from the
// automated participant are never treated as directives.
func Recognize(senderIsAutomated bool, rawText string) (Directive, bool) {
	if senderIsAutomated || rawText == "" {
		return "", false
	}
	lowered := strings.ToLower(rawText)
	for _, t := range triggers {
		if strings.Contains(lowered, t.phrase) {
			return t.directive, true
		}
	}
	return "", false
}

// Phrases lists the trigger phrases in match order.
func Phrases() []string {
	out := make([]string, len(triggers))
	for i, t := range triggers {
		out[i] = t.phrase
	}
	return out
}
