package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// dateTimeLayout is RFC 3339 in UTC with millisecond precision.
const dateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Overrides replaces computed request fields. Nil fields keep the computed
// default; a non-nil Login is merged field by field.
type Overrides struct {
	APIKey    *string         `json:"apiKey,omitempty"`
	EventID   *string         `json:"eventId,omitempty"`
	DateTime  *string         `json:"dateTime,omitempty"`
	IPAddress *string         `json:"ipAddress,omitempty"`
	Login     *LoginOverrides `json:"login,omitempty"`
}

// LoginOverrides replaces fields of the login sub-record.
type LoginOverrides struct {
	UserID             *string             `json:"userId,omitempty"`
	Channel            *string             `json:"channel,omitempty"`
	UsedCaptcha        *bool               `json:"usedCaptcha,omitempty"`
	AuthenticationType *AuthenticationType `json:"authenticationType,omitempty"`
	Status             *string             `json:"status,omitempty"`
	PasswordUpdateTime *time.Time          `json:"passwordUpdateTime,omitempty"`

	// ClearAuthenticationType sends a null authenticationType even when the
	// protocol maps to one. Set by an explicit JSON null. A non-nil
	// AuthenticationType wins over it.
	ClearAuthenticationType bool `json:"-"`
}

// UnmarshalJSON records an explicit "authenticationType": null, which the
// pointer field alone cannot tell apart from an absent key.
func (o *LoginOverrides) UnmarshalJSON(data []byte) error {
	type plain LoginOverrides
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	raw, ok := keys["authenticationType"]
	p.ClearAuthenticationType = ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	*o = LoginOverrides(p)
	return nil
}

// MarshalJSON writes a cleared authenticationType back out as null.
func (o LoginOverrides) MarshalJSON() ([]byte, error) {
	type plain LoginOverrides
	if o.AuthenticationType != nil || !o.ClearAuthenticationType {
		return json.Marshal(plain(o))
	}
	return json.Marshal(struct {
		plain
		AuthenticationType *AuthenticationType `json:"authenticationType"`
	}{plain: plain(o)})
}

// BuildRequest assembles the scoring request for one login. now becomes the
// request timestamp, so callers must pass a fresh time for every attempt.
// The timestamp has millisecond precision: two requests built within the
// same millisecond carry the same dateTime.
//
// Only a nil user or authCtx is refused. Empty ids are sent as they are and
// left to the scoring API to judge. Neither user nor authCtx is modified.
func BuildRequest(apiKey string, user *User, authCtx *AuthContext, overrides *Overrides, now time.Time) (*ScoringRequest, error) {
	if user == nil || authCtx == nil {
		return nil, fmt.Errorf("%w: user and context are required", ErrInvalidRequest)
	}

	req := &ScoringRequest{
		APIKey:    apiKey,
		EventID:   authCtx.SessionID,
		DateTime:  now.UTC().Format(dateTimeLayout),
		IPAddress: authCtx.Request.IP,
		Login: Login{
			UserID:      user.UserID,
			Channel:     ChannelWeb,
			UsedCaptcha: false,
			Status:      LoginStatusSuccess,
		},
	}
	if t, ok := MapAuthenticationType(authCtx.Protocol); ok {
		req.Login.AuthenticationType = &t
	}
	if user.LastPasswordReset != nil {
		ts := *user.LastPasswordReset
		req.Login.PasswordUpdateTime = &ts
	}

	overrides.apply(req)
	return req, nil
}

func (o *Overrides) apply(req *ScoringRequest) {
	if o == nil {
		return
	}
	setString(&req.APIKey, o.APIKey)
	setString(&req.EventID, o.EventID)
	setString(&req.DateTime, o.DateTime)
	setString(&req.IPAddress, o.IPAddress)
	o.Login.apply(&req.Login)
}

func (o *LoginOverrides) apply(login *Login) {
	if o == nil {
		return
	}
	setString(&login.UserID, o.UserID)
	setString(&login.Channel, o.Channel)
	setString(&login.Status, o.Status)
	if o.UsedCaptcha != nil {
		login.UsedCaptcha = *o.UsedCaptcha
	}
	if o.ClearAuthenticationType {
		login.AuthenticationType = nil
	}
	if o.AuthenticationType != nil {
		t := *o.AuthenticationType
		login.AuthenticationType = &t
	}
	if o.PasswordUpdateTime != nil {
		ts := *o.PasswordUpdateTime
		login.PasswordUpdateTime = &ts
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
