package domain

import (
	"encoding/json"
	"fmt"
)

// StatusKind tags the variant held by a Status.
type StatusKind int

const (
	StatusText StatusKind = iota
	StatusActionPrompt
)

func (k StatusKind) String() string {
	switch k {
	case StatusActionPrompt:
		return "action_prompt"
	default:
		return "text"
	}
}

// Status is a user-facing message: either plain text, or a message with a
// link the user should follow (install a wallet, open the explorer).
type Status struct {
	Kind    StatusKind
	Message string
	Link    string
}

// Text returns a plain text status.
func Text(message string) Status {
	return Status{Kind: StatusText, Message: message}
}

// ActionPrompt returns a status that asks the user to follow link.
func ActionPrompt(message, link string) Status {
	return Status{Kind: StatusActionPrompt, Message: message, Link: link}
}

// IsZero reports whether no status has been set.
func (s Status) IsZero() bool {
	return s.Message == "" && s.Link == ""
}

func (s Status) String() string {
	if s.Kind == StatusActionPrompt && s.Link != "" {
		return fmt.Sprintf("%s (%s)", s.Message, s.Link)
	}
	return s.Message
}

type statusJSON struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{Type: s.Kind.String(), Message: s.Message, Link: s.Link})
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw statusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case "", "text":
		s.Kind = StatusText
	case "action_prompt":
		s.Kind = StatusActionPrompt
	default:
		return fmt.Errorf("unknown status type %q", raw.Type)
	}
	s.Message = raw.Message
	s.Link = raw.Link
	return nil
}
