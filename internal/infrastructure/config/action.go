package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ActionType identifies one of the closed set of action variants.
type ActionType string

// Action type constants.
const (
	ActionTap     ActionType = "tap"
	ActionWait    ActionType = "wait"
	ActionCommand ActionType = "command"
)

// Action is one step in a stage's action list. The Type tag selects the
// variant; only the fields belonging to that variant are meaningful:
//
//	tap:     Button (a name resolvable via button templates or fallbacks)
//	wait:    DurationMS
//	command: Command (forwarded verbatim to the device shell)
//
// Unknown types are rejected at unmarshal time so execution only ever
// dispatches over the closed set.
type Action struct {
	Type       ActionType `yaml:"type"`
	Button     string     `yaml:"button,omitempty"`
	DurationMS int        `yaml:"duration_ms,omitempty"`
	Command    string     `yaml:"command,omitempty"`
}

// UnmarshalYAML decodes an action and rejects unknown type tags.
func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	// Alias type avoids recursing into this method.
	type rawAction Action
	var raw rawAction
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch raw.Type {
	case ActionTap, ActionWait, ActionCommand:
	case "":
		return fmt.Errorf("line %d: action is missing a type", value.Line)
	default:
		return fmt.Errorf("line %d: unknown action type %q (want tap, wait, or command)", value.Line, raw.Type)
	}

	*a = Action(raw)
	return nil
}

// WaitDuration returns the wait variant's duration.
func (a Action) WaitDuration() time.Duration {
	return time.Duration(a.DurationMS) * time.Millisecond
}

// String renders the action for logs.
func (a Action) String() string {
	switch a.Type {
	case ActionTap:
		return fmt.Sprintf("tap(%s)", a.Button)
	case ActionWait:
		return fmt.Sprintf("wait(%dms)", a.DurationMS)
	case ActionCommand:
		return fmt.Sprintf("command(%s)", a.Command)
	default:
		return string(a.Type)
	}
}
