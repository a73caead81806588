package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParseError reports a payload that does not describe a well-formed User.
// Index is the position of the offending record inside a list payload, or
// -1 when the payload is a single record.
type ParseError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed user payload")
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at index %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// wireUser mirrors the JSON object with every field optional so that a
// missing key can be told apart from an empty value.
type wireUser struct {
	ID               json.RawMessage `json:"id"`
	FirstName        *string         `json:"firstName"`
	LastName         *string         `json:"lastName"`
	Email            *string         `json:"email"`
	Skills           *[]string       `json:"skills"`
	RegistrationDate *string         `json:"registrationDate"`
}

// Parse decodes a single JSON object into a User.  Unknown keys are ignored;
// missing, null or ill-typed known keys produce a *ParseError.
func Parse(data []byte) (User, error) {
	return parseAt(data, -1)
}

// ParseList decodes a JSON array of user objects.  The first malformed
// record aborts the whole list.
func ParseList(data []byte) ([]User, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Index: -1, Reason: "expected a JSON array: " + err.Error()}
	}
	if raw == nil {
		return nil, &ParseError{Index: -1, Reason: "expected a JSON array, got null"}
	}
	users := make([]User, 0, len(raw))
	for i, item := range raw {
		u, err := parseAt(item, i)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func parseAt(data []byte, idx int) (User, error) {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return User{}, &ParseError{Index: idx, Reason: err.Error()}
	}
	fail := func(field, reason string) (User, error) {
		return User{}, &ParseError{Index: idx, Field: field, Reason: reason}
	}

	id, err := parseID(w.ID)
	if err != nil {
		return fail("id", err.Error())
	}
	if w.FirstName == nil {
		return fail("firstName", "missing")
	}
	if w.LastName == nil {
		return fail("lastName", "missing")
	}
	if w.Email == nil {
		return fail("email", "missing")
	}
	if w.Skills == nil {
		return fail("skills", "missing")
	}
	if w.RegistrationDate == nil {
		return fail("registrationDate", "missing")
	}
	registered, err := ParseTimestamp(*w.RegistrationDate)
	if err != nil {
		return fail("registrationDate", err.Error())
	}

	return User{
		ID:               id,
		FirstName:        *w.FirstName,
		LastName:         *w.LastName,
		Email:            *w.Email,
		Skills:           cloneSkills(*w.Skills),
		RegistrationDate: registered,
	}, nil
}

// parseID accepts a JSON string or a JSON number; some mock backends hand
// out numeric ids.
func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing")
	}
	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("must be a string or a number")
		}
		id = n.String()
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("empty")
	}
	return id, nil
}

// ParseTimestamp parses an ISO-8601 timestamp as produced by the API
// (RFC 3339, optional fractional seconds).
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", raw)
	}
	return t, nil
}
