// Package convert maps between structpb.Struct wire messages and domain values.
// Binary fields travel as standard base64 strings and timestamps as RFC 3339
// strings, matching the protobuf JSON mapping.
package convert

import (
	"encoding/base64"
	"fmt"
	"time"

	model "github.com/and161185/passkit/internal/model"
	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Field names shared by client and server.
const (
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldOldPassword = "old_password"
	FieldNewPassword = "new_password"
	FieldUserID      = "user_id"
	FieldAccessToken = "access_token"
	FieldExpiresAt   = "expires_at"
	FieldPayload     = "payload"
	FieldTag         = "tag"
	FieldValid       = "valid"
)

// --- helpers ---

func ts(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func fieldString(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s: not a string", key)
	}
	return sv.StringValue, nil
}

func fieldBytes(s *structpb.Struct, key string) ([]byte, error) {
	str, err := fieldString(s, key)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func newStruct(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

func bytesValue(b []byte) *structpb.Value {
	return structpb.NewStringValue(base64.StdEncoding.EncodeToString(b))
}

// --- Credentials (Register, Login) ---

// Credentials is a username/password pair.
type Credentials struct {
	Username string
	Password string
}

// ToStructCredentials wraps credentials into a request message.
func ToStructCredentials(c Credentials) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{
		FieldUsername: structpb.NewStringValue(c.Username),
		FieldPassword: structpb.NewStringValue(c.Password),
	})
}

// FromStructCredentials extracts credentials from a request message.
func FromStructCredentials(s *structpb.Struct) (Credentials, error) {
	if s == nil {
		return Credentials{}, fmt.Errorf("nil credentials")
	}
	name, err := fieldString(s, FieldUsername)
	if err != nil {
		return Credentials{}, err
	}
	pw, err := fieldString(s, FieldPassword)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Username: name, Password: pw}, nil
}

// --- User ID (Register response) ---

// ToStructUserID wraps a user ID.
func ToStructUserID(id string) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{FieldUserID: structpb.NewStringValue(id)})
}

// FromStructUserID extracts and validates a user ID.
func FromStructUserID(s *structpb.Struct) (u.UUID, error) {
	str, err := fieldString(s, FieldUserID)
	if err != nil {
		return u.Nil, err
	}
	var id u.UUID
	if err := id.UnmarshalText([]byte(str)); err != nil {
		return u.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// --- Login (server -> client) ---

// Session is the client view of a successful login.
type Session struct {
	UserID      u.UUID
	AccessToken string
	ExpiresAt   time.Time
}

// ToStructLogin converts issued tokens and the authenticated user to a response.
func ToStructLogin(tok model.Tokens, user model.User) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldUserID:      structpb.NewStringValue(user.ID.String()),
		FieldAccessToken: structpb.NewStringValue(tok.AccessToken),
	}
	if t := ts(tok.ExpiresAt); t != nil {
		fields[FieldExpiresAt] = structpb.NewStringValue(t.AsTime().Format(time.RFC3339Nano))
	}
	return newStruct(fields)
}

// FromStructLogin parses a login response.
func FromStructLogin(s *structpb.Struct) (Session, error) {
	id, err := FromStructUserID(s)
	if err != nil {
		return Session{}, err
	}
	tok, err := fieldString(s, FieldAccessToken)
	if err != nil {
		return Session{}, err
	}
	out := Session{UserID: id, AccessToken: tok}
	if raw, err := fieldString(s, FieldExpiresAt); err == nil {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Session{}, fmt.Errorf("%s: %w", FieldExpiresAt, err)
		}
		if err := timestamppb.New(t).CheckValid(); err != nil {
			return Session{}, fmt.Errorf("%s: %w", FieldExpiresAt, err)
		}
		out.ExpiresAt = t
	}
	return out, nil
}

// --- ChangePassword ---

// PasswordChange carries the current and the new password.
type PasswordChange struct {
	Old string
	New string
}

// ToStructPasswordChange wraps a password change request.
func ToStructPasswordChange(c PasswordChange) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{
		FieldOldPassword: structpb.NewStringValue(c.Old),
		FieldNewPassword: structpb.NewStringValue(c.New),
	})
}

// FromStructPasswordChange extracts a password change request.
func FromStructPasswordChange(s *structpb.Struct) (PasswordChange, error) {
	oldPw, err := fieldString(s, FieldOldPassword)
	if err != nil {
		return PasswordChange{}, err
	}
	newPw, err := fieldString(s, FieldNewPassword)
	if err != nil {
		return PasswordChange{}, err
	}
	return PasswordChange{Old: oldPw, New: newPw}, nil
}

// --- Messages (SignMessage, VerifyMessage) ---

// Message is a payload with an optional HMAC tag.
type Message struct {
	Payload []byte
	Tag     []byte
}

// ToStructMessage wraps a message; the tag is omitted when empty.
func ToStructMessage(m Message) *structpb.Struct {
	fields := map[string]*structpb.Value{FieldPayload: bytesValue(m.Payload)}
	if len(m.Tag) > 0 {
		fields[FieldTag] = bytesValue(m.Tag)
	}
	return newStruct(fields)
}

// FromStructMessage extracts a message. requireTag rejects messages without a tag.
func FromStructMessage(s *structpb.Struct, requireTag bool) (Message, error) {
	payload, err := fieldBytes(s, FieldPayload)
	if err != nil {
		return Message{}, err
	}
	m := Message{Payload: payload}
	if _, ok := s.GetFields()[FieldTag]; ok || requireTag {
		if m.Tag, err = fieldBytes(s, FieldTag); err != nil {
			return Message{}, err
		}
	}
	return m, nil
}

// ToStructTag wraps a computed tag.
func ToStructTag(tag []byte) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{FieldTag: bytesValue(tag)})
}

// FromStructTag extracts a tag.
func FromStructTag(s *structpb.Struct) ([]byte, error) {
	return fieldBytes(s, FieldTag)
}

// ToStructValid wraps a verification result.
func ToStructValid(ok bool) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{FieldValid: structpb.NewBoolValue(ok)})
}

// FromStructValid extracts a verification result.
func FromStructValid(s *structpb.Struct) (bool, error) {
	v, ok := s.GetFields()[FieldValid]
	if !ok {
		return false, fmt.Errorf("missing %s", FieldValid)
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%s: not a bool", FieldValid)
	}
	return bv.BoolValue, nil
}
