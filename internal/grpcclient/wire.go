package grpcclient

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ownding/headscale-console/internal/headscale"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Service and method names of the headscale v1 API.
const (
	ServiceName      = "headscale.v1.HeadscaleService"
	MethodListUsers  = "/" + ServiceName + "/ListUsers"
	MethodCreateUser = "/" + ServiceName + "/CreateUser"
)

// wireMessage is implemented by every message carried by wireCodec.
type wireMessage interface {
	marshalWire() ([]byte, error)
	unmarshalWire([]byte) error
}

// wireCodec encodes the hand-written headscale.v1 messages. It registers
// under the "proto" name so the content-type matches a generated client.
type wireCodec struct{}

func (wireCodec) Name() string { return "proto" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("wire codec: cannot marshal %T", v)
	}
	return m.marshalWire()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("wire codec: cannot unmarshal into %T", v)
	}
	return m.unmarshalWire(data)
}

// User mirrors headscale.v1.User.
//
// Field 1 is a uint64 on current servers and a string on servers from
// before the numeric id migration; both decode into ID.
type User struct {
	ID            string
	Name          string
	CreatedAt     *timestamppb.Timestamp
	DisplayName   string
	Email         string
	ProviderID    string
	Provider      string
	ProfilePicURL string
}

func (u *User) marshalWire() ([]byte, error) {
	var b []byte
	if u.ID != "" {
		if n, err := strconv.ParseUint(u.ID, 10, 64); err == nil {
			b = protowire.AppendTag(b, 1, protowire.VarintType)
			b = protowire.AppendVarint(b, n)
		} else {
			b = appendString(b, 1, u.ID)
		}
	}
	b = appendString(b, 2, u.Name)
	if u.CreatedAt != nil {
		ts, err := proto.Marshal(u.CreatedAt)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}
	b = appendString(b, 4, u.DisplayName)
	b = appendString(b, 5, u.Email)
	b = appendString(b, 6, u.ProviderID)
	b = appendString(b, 7, u.Provider)
	b = appendString(b, 8, u.ProfilePicURL)
	return b, nil
}

func (u *User) unmarshalWire(b []byte) error {
	*u = User{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			if typ == protowire.VarintType {
				n, m := protowire.ConsumeVarint(v)
				if m < 0 {
					return 0, protowire.ParseError(m)
				}
				u.ID = strconv.FormatUint(n, 10)
				return m, nil
			}
			return consumeString(typ, v, &u.ID)
		case 2:
			return consumeString(typ, v, &u.Name)
		case 3:
			if typ != protowire.BytesType {
				return skip, nil
			}
			raw, m := protowire.ConsumeBytes(v)
			if m < 0 {
				return 0, protowire.ParseError(m)
			}
			ts := &timestamppb.Timestamp{}
			if err := proto.Unmarshal(raw, ts); err != nil {
				return 0, fmt.Errorf("user.created_at: %w", err)
			}
			u.CreatedAt = ts
			return m, nil
		case 4:
			return consumeString(typ, v, &u.DisplayName)
		case 5:
			return consumeString(typ, v, &u.Email)
		case 6:
			return consumeString(typ, v, &u.ProviderID)
		case 7:
			return consumeString(typ, v, &u.Provider)
		case 8:
			return consumeString(typ, v, &u.ProfilePicURL)
		}
		return skip, nil
	})
}

// Domain converts the wire record into the shared user record.
func (u *User) Domain() headscale.User {
	out := headscale.User{
		ID:            headscale.ID(u.ID),
		Name:          u.Name,
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		Provider:      u.Provider,
		ProviderID:    u.ProviderID,
		ProfilePicURL: u.ProfilePicURL,
	}
	if u.CreatedAt != nil && u.CreatedAt.IsValid() {
		out.CreatedAt = u.CreatedAt.AsTime().UTC().Format(time.RFC3339)
	}
	return out
}

// CreateUserRequest mirrors headscale.v1.CreateUserRequest.
type CreateUserRequest struct {
	Name        string
	DisplayName string
	Email       string
	PictureURL  string
}

func (r *CreateUserRequest) marshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, r.Name)
	b = appendString(b, 2, r.DisplayName)
	b = appendString(b, 3, r.Email)
	b = appendString(b, 4, r.PictureURL)
	return b, nil
}

func (r *CreateUserRequest) unmarshalWire(b []byte) error {
	*r = CreateUserRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, v, &r.Name)
		case 2:
			return consumeString(typ, v, &r.DisplayName)
		case 3:
			return consumeString(typ, v, &r.Email)
		case 4:
			return consumeString(typ, v, &r.PictureURL)
		}
		return skip, nil
	})
}

// CreateUserResponse mirrors headscale.v1.CreateUserResponse.
type CreateUserResponse struct {
	User *User
}

func (r *CreateUserResponse) marshalWire() ([]byte, error) {
	if r.User == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, r.User)
}

func (r *CreateUserResponse) unmarshalWire(b []byte) error {
	*r = CreateUserResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return skip, nil
		}
		u := &User{}
		m, err := consumeMessage(typ, v, u)
		if err == nil && m != skip {
			r.User = u
		}
		return m, err
	})
}

// ListUsersRequest mirrors headscale.v1.ListUsersRequest. Zero values are
// omitted, so an empty request lists every user.
type ListUsersRequest struct {
	ID    uint64
	Name  string
	Email string
}

func (r *ListUsersRequest) marshalWire() ([]byte, error) {
	var b []byte
	if r.ID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, r.ID)
	}
	b = appendString(b, 2, r.Name)
	b = appendString(b, 3, r.Email)
	return b, nil
}

func (r *ListUsersRequest) unmarshalWire(b []byte) error {
	*r = ListUsersRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			if typ != protowire.VarintType {
				return skip, nil
			}
			n, m := protowire.ConsumeVarint(v)
			if m < 0 {
				return 0, protowire.ParseError(m)
			}
			r.ID = n
			return m, nil
		case 2:
			return consumeString(typ, v, &r.Name)
		case 3:
			return consumeString(typ, v, &r.Email)
		}
		return skip, nil
	})
}

// ListUsersResponse mirrors headscale.v1.ListUsersResponse.
type ListUsersResponse struct {
	Users []*User
}

func (r *ListUsersResponse) marshalWire() ([]byte, error) {
	var b []byte
	for _, u := range r.Users {
		var err error
		if b, err = appendMessage(b, 1, u); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r *ListUsersResponse) unmarshalWire(b []byte) error {
	*r = ListUsersResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return skip, nil
		}
		u := &User{}
		m, err := consumeMessage(typ, v, u)
		if err == nil && m != skip {
			r.Users = append(r.Users, u)
		}
		return m, err
	})
}

// skip tells consumeFields to step over a field it does not handle.
const skip = -1

// consumeFields walks b and hands each field to fn. fn returns the number
// of value bytes it consumed, or skip.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == skip {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, v []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return skip, nil
	}
	s, m := protowire.ConsumeString(v)
	if m < 0 {
		return 0, protowire.ParseError(m)
	}
	*dst = s
	return m, nil
}

func consumeMessage(typ protowire.Type, v []byte, dst wireMessage) (int, error) {
	if typ != protowire.BytesType {
		return skip, nil
	}
	raw, m := protowire.ConsumeBytes(v)
	if m < 0 {
		return 0, protowire.ParseError(m)
	}
	if err := dst.unmarshalWire(raw); err != nil {
		return 0, err
	}
	return m, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, m wireMessage) ([]byte, error) {
	inner, err := m.marshalWire()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}
