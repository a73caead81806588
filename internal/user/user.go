package user

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// User is a single record of the remote collection.  ID is assigned by the
// server and never changes once the record exists.
type User struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Skills           []string  `json:"skills"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// Draft is the payload of a create call: a User that has not been assigned
// an ID yet.  A zero RegistrationDate is filled in before the call is made.
type Draft struct {
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Skills           []string  `json:"skills"`
	RegistrationDate time.Time `json:"registrationDate,omitzero"`
}

// WithID turns the draft into a User carrying the given id.
func (d Draft) WithID(id string) User {
	return User{
		ID:               id,
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		Email:            d.Email,
		Skills:           cloneSkills(d.Skills),
		RegistrationDate: d.RegistrationDate,
	}
}

// Draft returns the record without its id.
func (u User) Draft() Draft {
	return Draft{
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Skills:           cloneSkills(u.Skills),
		RegistrationDate: u.RegistrationDate,
	}
}

// Clone returns a copy that shares no memory with u.
func (u User) Clone() User {
	u.Skills = cloneSkills(u.Skills)
	return u
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CloneAll deep-copies a slice of users.  A nil slice stays nil.
func CloneAll(users []User) []User {
	if users == nil {
		return nil
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}

func cloneSkills(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return slices.Clone(skills)
}

// Field names a sortable attribute of a User.  The zero value means "no
// field".
type Field string

const (
	FieldID               Field = "id"
	FieldFirstName        Field = "firstName"
	FieldLastName         Field = "lastName"
	FieldEmail            Field = "email"
	FieldSkills           Field = "skills"
	FieldRegistrationDate Field = "registrationDate"
)

var fields = []Field{
	FieldID,
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldSkills,
	FieldRegistrationDate,
}

// Fields lists every sortable field.
func Fields() []Field {
	return slices.Clone(fields)
}

// ParseField resolves a field name as used on the wire (e.g. "lastName").
// Matching is case-insensitive.
func ParseField(raw string) (Field, error) {
	raw = strings.TrimSpace(raw)
	for _, f := range fields {
		if strings.EqualFold(string(f), raw) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", raw)
}

// Compare orders a and b by field f.  String attributes compare lexically,
// skills compare as their comma-joined form and registration dates compare
// chronologically.  An unknown field treats every pair as equal.
func Compare(a, b User, f Field) int {
	switch f {
	case FieldID:
		return cmp.Compare(a.ID, b.ID)
	case FieldFirstName:
		return cmp.Compare(a.FirstName, b.FirstName)
	case FieldLastName:
		return cmp.Compare(a.LastName, b.LastName)
	case FieldEmail:
		return cmp.Compare(a.Email, b.Email)
	case FieldSkills:
		return cmp.Compare(strings.Join(a.Skills, ","), strings.Join(b.Skills, ","))
	case FieldRegistrationDate:
		return a.RegistrationDate.Compare(b.RegistrationDate)
	default:
		return 0
	}
}
