package entity

import "time"

// Form field names, in display order.
const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

// FieldNames lists every form field in display order.
var FieldNames = []string{FieldFullName, FieldEmail, FieldPassword, FieldConfirmPassword}

// FormValues is the in-progress registration form. The JSON shape is also the
// persisted draft format.
type FormValues struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Get returns the value of the named field.
func (v FormValues) Get(field string) (string, bool) {
	switch field {
	case FieldFullName:
		return v.FullName, true
	case FieldEmail:
		return v.Email, true
	case FieldPassword:
		return v.Password, true
	case FieldConfirmPassword:
		return v.ConfirmPassword, true
	}
	return "", false
}

// Set writes the named field and reports whether the name is known.
func (v *FormValues) Set(field, value string) bool {
	switch field {
	case FieldFullName:
		v.FullName = value
	case FieldEmail:
		v.Email = value
	case FieldPassword:
		v.Password = value
	case FieldConfirmPassword:
		v.ConfirmPassword = value
	default:
		return false
	}
	return true
}

// Record converts the form into the remote record; confirmPassword is not sent.
func (v FormValues) Record() *UserRecord {
	return &UserRecord{FullName: v.FullName, Email: v.Email, Password: v.Password}
}

// UserRecord is an entry of the append-only "users" collection.
// Password is stored exactly as submitted.
type UserRecord struct {
	ID        string    `json:"id,omitempty"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ChangeKind tags a change-feed event.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeEvent is one entry of a change-feed batch.
type ChangeEvent struct {
	Kind   ChangeKind  `json:"kind"`
	Record *UserRecord `json:"record,omitempty"`
}
