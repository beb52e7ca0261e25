package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// UserHeader is the request header carrying a trusted actor, either as raw JSON
// or as base64-encoded JSON.
const UserHeader = "X-User"

type headerActor struct {
	ID          *string  `json:"id"`
	Roles       []string `json:"roles"`
	OrgID       *string  `json:"orgId"`
	Permissions []string `json:"permissions"`
}

// ParseUserHeader decodes the actor carried in the user header. The payload
// must have a string id and a roles array.
func ParseUserHeader(raw string) (Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Actor{}, ErrInvalidHeader
	}
	if actor, ok := decodeHeaderJSON([]byte(raw)); ok {
		return actor, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(raw)
		if err != nil {
			continue
		}
		if actor, ok := decodeHeaderJSON(decoded); ok {
			return actor, nil
		}
	}
	return Actor{}, ErrInvalidHeader
}

func decodeHeaderJSON(data []byte) (Actor, bool) {
	var h headerActor
	if err := json.Unmarshal(data, &h); err != nil {
		return Actor{}, false
	}
	if h.ID == nil || h.Roles == nil {
		return Actor{}, false
	}
	a := Actor{ID: *h.ID, Roles: h.Roles, Permissions: h.Permissions}
	if h.OrgID != nil {
		a.OrgID = *h.OrgID
	}
	a.Normalize()
	if a.ID == "" {
		return Actor{}, false
	}
	return a, true
}
