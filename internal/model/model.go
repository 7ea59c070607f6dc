// Package model defines the values exchanged between the client components.
package model

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Credentials is a single submit attempt's input. Never persisted.
type Credentials struct {
	EmailID  string `json:"emailId"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// Result is the uniform outcome of every auth API call. Failures are values, not errors.
type Result struct {
	OK     bool            // response status was 2xx and the body was JSON
	Data   json.RawMessage // decoded response body, nil when none was read
	Error  string          // diagnostic for transport or parse failures
	Status int             // HTTP status, 0 when no response arrived
	Err    error           // failure cause, wraps an errs sentinel
}

// Message returns the server supplied "message" field, if any. Non-string
// values count as absent.
func (r Result) Message() string {
	return stringField(r.Data, "message")
}

// Token returns the session token carried in the payload, if any.
func (r Result) Token() string {
	return stringField(r.Data, "token")
}

// Profile holds the body of a successful profile fetch.
type Profile struct {
	Data json.RawMessage
}

// NewProfile builds a profile from a successful result; nil otherwise.
func NewProfile(r Result) *Profile {
	if !r.OK || len(r.Data) == 0 {
		return nil
	}
	return &Profile{Data: append(json.RawMessage(nil), r.Data...)}
}

// Username returns the profile's username field.
func (p *Profile) Username() string {
	if p == nil {
		return ""
	}
	return field(p.Data, "username")
}

// Field returns an arbitrary top-level or dotted-path profile field as text.
func (p *Profile) Field(path string) string {
	if p == nil {
		return ""
	}
	return field(p.Data, path)
}

func field(data json.RawMessage, path string) string {
	if len(data) == 0 {
		return ""
	}
	v := gjson.GetBytes(data, path)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

// stringField is field restricted to JSON strings, so false or 0 read as "".
func stringField(data json.RawMessage, path string) string {
	if len(data) == 0 {
		return ""
	}
	v := gjson.GetBytes(data, path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}
