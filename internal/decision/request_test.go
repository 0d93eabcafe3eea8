package decision

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *User {
	reset := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &User{
		UserID:            "auth0|user-1",
		CreatedAt:         &created,
		LastPasswordReset: &reset,
		AppMetadata:       map[string]any{"plan": "pro"},
	}
}

func testAuthContext(p Protocol) *AuthContext {
	return &AuthContext{
		SessionID: "sess-123",
		Protocol:  p,
		Request: RequestInfo{
			IP:        "203.0.113.7",
			UserAgent: "Mozilla/5.0",
			Geo:       &Geo{CountryCode: "US", CityName: "Denver"},
		},
	}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestBuildRequest_Defaults(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 30, 0, 123_000_000, time.UTC)
	user := testUser()

	req, err := BuildRequest("key-1", user, testAuthContext(ProtocolOIDCBasicProfile), nil, now)
	require.NoError(t, err)

	assert.Equal(t, "key-1", req.APIKey)
	assert.Equal(t, "sess-123", req.EventID)
	assert.Equal(t, "2026-10-16T08:30:00.123Z", req.DateTime)
	assert.Equal(t, "203.0.113.7", req.IPAddress)
	assert.Equal(t, "auth0|user-1", req.Login.UserID)
	assert.Equal(t, ChannelWeb, req.Login.Channel)
	assert.False(t, req.Login.UsedCaptcha)
	assert.Equal(t, LoginStatusSuccess, req.Login.Status)
	require.NotNil(t, req.Login.AuthenticationType)
	assert.Equal(t, AuthTypePassword, *req.Login.AuthenticationType)
	require.NotNil(t, req.Login.PasswordUpdateTime)
	assert.True(t, req.Login.PasswordUpdateTime.Equal(*user.LastPasswordReset))
}

func TestBuildRequest_NonUTCClockIsNormalised(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 10, 16, 10, 30, 0, 0, loc)

	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), nil, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16T08:30:00.000Z", req.DateTime)
}

func TestBuildRequest_UnmappedProtocolSerialisesNull(t *testing.T) {
	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolDelegation), nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, req.Login.AuthenticationType)

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	login := decoded["login"].(map[string]any)
	v, present := login["authenticationType"]
	assert.True(t, present, "authenticationType must be present")
	assert.Nil(t, v)
}

func TestBuildRequest_OverrideChannelOnly(t *testing.T) {
	now := time.Now()
	base, err := BuildRequest("k", testUser(), testAuthContext(ProtocolWSFed), nil, now)
	require.NoError(t, err)

	over := &Overrides{Login: &LoginOverrides{Channel: strPtr("app")}}
	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolWSFed), over, now)
	require.NoError(t, err)

	assert.Equal(t, "app", req.Login.Channel)

	// Everything else stays computed.
	base.Login.Channel = "app"
	assert.Equal(t, base, req)
}

func TestBuildRequest_OverrideFixedFields(t *testing.T) {
	over := &Overrides{Login: &LoginOverrides{
		Status:      strPtr("failure"),
		UsedCaptcha: boolPtr(true),
	}}
	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), over, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "failure", req.Login.Status)
	assert.True(t, req.Login.UsedCaptcha)
	assert.Equal(t, ChannelWeb, req.Login.Channel)
}

func TestBuildRequest_UnrelatedOverridesKeepFixedFields(t *testing.T) {
	at := AuthTypeKey
	over := &Overrides{
		IPAddress: strPtr("198.51.100.1"),
		Login:     &LoginOverrides{AuthenticationType: &at},
	}
	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolDelegation), over, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "198.51.100.1", req.IPAddress)
	require.NotNil(t, req.Login.AuthenticationType)
	assert.Equal(t, AuthTypeKey, *req.Login.AuthenticationType)
	assert.Equal(t, LoginStatusSuccess, req.Login.Status)
	assert.False(t, req.Login.UsedCaptcha)
}

func TestBuildRequest_OverridesFromJSON(t *testing.T) {
	var over Overrides
	require.NoError(t, json.Unmarshal([]byte(`{"eventId":"evt-9","login":{"channel":"app","usedCaptcha":false}}`), &over))

	req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), &over, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "evt-9", req.EventID)
	assert.Equal(t, "app", req.Login.Channel)
	assert.False(t, req.Login.UsedCaptcha)
}

func TestBuildRequest_FreshTimestampIdempotentOtherwise(t *testing.T) {
	t1 := time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)
	t2 := t1.Add(time.Millisecond)

	a, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), nil, t1)
	require.NoError(t, err)
	b, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), nil, t2)
	require.NoError(t, err)

	assert.NotEqual(t, a.DateTime, b.DateTime)
	b.DateTime = a.DateTime
	assert.Equal(t, a, b)
}

func TestBuildRequest_DoesNotMutateInputs(t *testing.T) {
	user := testUser()
	authCtx := testAuthContext(ProtocolSAMLP)
	userCopy := *user
	ctxCopy := *authCtx
	resetBefore := *user.LastPasswordReset

	req, err := BuildRequest("k", user, authCtx, &Overrides{Login: &LoginOverrides{Channel: strPtr("app")}}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, userCopy, *user)
	assert.Equal(t, ctxCopy, *authCtx)

	// The request holds its own copy of the reset time.
	*req.Login.PasswordUpdateTime = time.Time{}
	assert.Equal(t, resetBefore, *user.LastPasswordReset)
}

func TestBuildRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		user    *User
		authCtx *AuthContext
	}{
		{"nil user", nil, testAuthContext(ProtocolSAMLP)},
		{"nil context", testUser(), nil},
		{"both nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest("k", tt.user, tt.authCtx, nil, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestBuildRequest_EmptyIDsAreKept(t *testing.T) {
	req, err := BuildRequest("", &User{}, &AuthContext{Protocol: ProtocolSAMLP}, nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, req.APIKey)
	assert.Empty(t, req.EventID)
	assert.Empty(t, req.Login.UserID)
	assert.Equal(t, ChannelWeb, req.Login.Channel)
	require.NotNil(t, req.Login.AuthenticationType)
	assert.Equal(t, AuthTypeSingleSignOn, *req.Login.AuthenticationType)
}

func TestBuildRequest_AuthenticationTypeOverride(t *testing.T) {
	tests := []struct {
		name string
		json string
		want any
	}{
		{"absent keeps mapped", `{"login":{"channel":"app"}}`, "single_sign_on"},
		{"value replaces", `{"login":{"authenticationType":"password"}}`, "password"},
		{"null clears", `{"login":{"authenticationType":null}}`, nil},
		{"null with spaces clears", `{"login":{"authenticationType" :  null }}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var over Overrides
			require.NoError(t, json.Unmarshal([]byte(tt.json), &over))

			req, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), &over, time.Now())
			require.NoError(t, err)

			raw, err := json.Marshal(req)
			require.NoError(t, err)
			var wire map[string]any
			require.NoError(t, json.Unmarshal(raw, &wire))
			login := wire["login"].(map[string]any)
			v, present := login["authenticationType"]
			assert.True(t, present, "authenticationType is always on the wire")
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestLoginOverrides_ClearSurvivesMarshal(t *testing.T) {
	raw, err := json.Marshal(LoginOverrides{ClearAuthenticationType: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"authenticationType":null}`, string(raw))

	var back LoginOverrides
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.ClearAuthenticationType)
	assert.Nil(t, back.AuthenticationType)

	raw, err = json.Marshal(LoginOverrides{Channel: strPtr("app")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"app"}`, string(raw))
}

// The stamp has millisecond precision, so only builds at least a
// millisecond apart are guaranteed distinct.
func TestBuildRequest_RealClockStampsAdvance(t *testing.T) {
	a, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), nil, time.Now())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := BuildRequest("k", testUser(), testAuthContext(ProtocolSAMLP), nil, time.Now())
	require.NoError(t, err)

	ta, err := time.Parse(time.RFC3339Nano, a.DateTime)
	require.NoError(t, err)
	tb, err := time.Parse(time.RFC3339Nano, b.DateTime)
	require.NoError(t, err)
	assert.True(t, tb.After(ta), "%s should be after %s", b.DateTime, a.DateTime)
}
