package render

import (
	"strings"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

type BuiltInField int

const (
	notBuiltIn BuiltInField = iota
	FieldName
	FieldEmail
	FieldOrganization
	FieldPhone
	FieldAddress
)

var builtInFields = map[string]BuiltInField{
	"name":         FieldName,
	"email":        FieldEmail,
	"organization": FieldOrganization,
	"phone":        FieldPhone,
	"address":      FieldAddress,
}

// FieldKey is either a built-in participant field or a custom answer key.
type FieldKey struct {
	builtIn BuiltInField
	raw     string
}

func ParseFieldKey(s string) FieldKey {
	raw := strings.TrimSpace(s)
	return FieldKey{builtIn: builtInFields[strings.ToLower(raw)], raw: raw}
}

func (k FieldKey) BuiltIn() (BuiltInField, bool) {
	return k.builtIn, k.builtIn != notBuiltIn
}

func (k FieldKey) String() string {
	return k.raw
}

type FieldResolver interface {
	Resolve(key FieldKey) string
}

// RegistrationFields resolves keys against a registration: built-in columns
// first, then the free-form answers, then the empty string.
type RegistrationFields struct {
	Registration domain.Registration
}

func (f RegistrationFields) Resolve(key FieldKey) string {
	if b, ok := key.BuiltIn(); ok {
		if v := f.builtIn(b); v != "" {
			return v
		}
	}
	if v, ok := f.Registration.Answers[key.String()]; ok {
		return v
	}
	return ""
}

func (f RegistrationFields) builtIn(b BuiltInField) string {
	r := f.Registration
	switch b {
	case FieldName:
		return r.Name
	case FieldEmail:
		return r.Email
	case FieldOrganization:
		return r.Organization
	case FieldPhone:
		return r.Phone
	case FieldAddress:
		return r.Address
	}
	return ""
}

// MapFields resolves from a plain map; used for previews.
type MapFields map[string]string

func (m MapFields) Resolve(key FieldKey) string {
	return m[key.String()]
}
