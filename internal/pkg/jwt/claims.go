package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	IdentityID     int64                  `json:"identity_id"`
	SessionPurpose string                 `json:"session_purpose,omitempty"`
	ExtraData      map[string]interface{} `json:"extra_data,omitempty"`
	jwt.RegisteredClaims
}

// ExtraInt64 reads an int64 value out of ExtraData. JSON numbers decode as
// float64, so both representations are accepted.
func (c *Claims) ExtraInt64(key string) (int64, bool) {
	if c.ExtraData == nil {
		return 0, false
	}
	switch v := c.ExtraData[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// ExtraString reads a string value out of ExtraData.
func (c *Claims) ExtraString(key string) (string, bool) {
	if c.ExtraData == nil {
		return "", false
	}
	v, ok := c.ExtraData[key].(string)
	return v, ok
}
