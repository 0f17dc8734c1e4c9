package command

import "strings"

// Action identifies the single state-machine action a recognized verb maps
// to.
type Action int

const (
	ActionNone Action = iota
	ActionTrackOn
	ActionTrackOff
	ActionEmergencyOff
	ActionStatus
	ActionLocation
	ActionTest
	ActionHelp
	ActionReboot
)

// Command is one parsed inbound message. Discarded after dispatch.
type Command struct {
	Raw      string
	Verb     string
	Argument string // text following the matched verb, trimmed
	Action   Action
}

// vocabulary maps recognized verbs to actions. Verbs are token sequences;
// multi-word verbs come first so "EMERGENCY OFF" cannot be shadowed by a
// shorter match.
var vocabulary = []struct {
	verb   string
	tokens []string
	action Action
}{
	{"TRACK ON", []string{"TRACK", "ON"}, ActionTrackOn},
	{"TRACK OFF", []string{"TRACK", "OFF"}, ActionTrackOff},
	{"EMERGENCY OFF", []string{"EMERGENCY", "OFF"}, ActionEmergencyOff},
	{"STATUS", []string{"STATUS"}, ActionStatus},
	{"LOCATION", []string{"LOCATION"}, ActionLocation},
	{"TEST", []string{"TEST"}, ActionTest},
	{"HELP", []string{"HELP"}, ActionHelp},
	{"REBOOT", []string{"REBOOT"}, ActionReboot},
}

// Parse tokenizes the message body and matches the token stream against the
// fixed vocabulary, case-insensitively and anywhere in the text.
// Unrecognized content returns ok == false and is silently ignored by the
// caller: no reply, no error.
func Parse(raw string) (Command, bool) {
	tokens := strings.Fields(strings.ToUpper(raw))
	for _, v := range vocabulary {
		if i, ok := matchAt(tokens, v.tokens); ok {
			return Command{
				Raw:      raw,
				Verb:     v.verb,
				Argument: strings.Join(tokens[i+len(v.tokens):], " "),
				Action:   v.action,
			}, true
		}
	}
	return Command{Raw: raw}, false
}

// matchAt finds the first position where verb occurs as a consecutive token
// run.
func matchAt(tokens, verb []string) (int, bool) {
	for i := 0; i+len(verb) <= len(tokens); i++ {
		hit := true
		for j, w := range verb {
			if tokens[i+j] != w {
				hit = false
				break
			}
		}
		if hit {
			return i, true
		}
	}
	return 0, false
}
