// Package decision scores login events against the Precognitive risk API.
//
// Every successful authentication is turned into a scoring request and sent
// to the API with a short, fixed timeout. The answer is classified into
// allow or reject. Any infrastructure failure on the way (non-200, network
// error, timeout, garbage body) is replaced by a fixed "allow" response so
// that an outage of the scoring service never blocks a login.
package decision

import (
	"time"
)

// Decision is the scoring service's verdict on a login.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionReject Decision = "reject"
)

// AuthenticationType is the coarse category of how a user authenticated.
type AuthenticationType string

const (
	AuthTypePassword     AuthenticationType = "password"
	AuthTypeSingleSignOn AuthenticationType = "single_sign_on"
	AuthTypeKey          AuthenticationType = "key"
)

// Protocol is the authentication protocol reported by the host.
type Protocol string

const (
	ProtocolOIDCBasicProfile             Protocol = "oidc-basic-profile"
	ProtocolOIDCImplicitProfile          Protocol = "oidc-implicit-profile"
	ProtocolOAuth2ResourceOwner          Protocol = "oauth2-resource-owner"
	ProtocolOAuth2ResourceOwnerJWTBearer Protocol = "oauth2-resource-owner-jwt-bearer"
	ProtocolOAuth2Password               Protocol = "oauth2-password"
	ProtocolOAuth2RefreshToken           Protocol = "oauth2-refresh-token"
	ProtocolSAMLP                        Protocol = "samlp"
	ProtocolWSFed                        Protocol = "wsfed"
	ProtocolWSTrustUsernameMixed         Protocol = "wstrust-usernamemixed"
	ProtocolDelegation                   Protocol = "delegation"
	ProtocolRedirectCallback             Protocol = "redirect-callback"
)

// Fixed login sub-record values. This client only runs after a successful
// authentication, from a browser flow, without a captcha challenge.
const (
	ChannelWeb         = "web"
	LoginStatusSuccess = "success"
)

// SignalUnableToDecision tags the synthetic fail-open response.
const SignalUnableToDecision = "unable-to-decision"

// User is the identity record supplied by the host for one call.
type User struct {
	UserID            string         `json:"user_id"`
	CreatedAt         *time.Time     `json:"created_at,omitempty"`
	LastLogin         *time.Time     `json:"last_login,omitempty"`
	LastPasswordReset *time.Time     `json:"last_password_reset,omitempty"`
	AppMetadata       map[string]any `json:"app_metadata,omitempty"`
	UserMetadata      map[string]any `json:"user_metadata,omitempty"`
}

// Geo is the geolocation the host resolved for the client IP.
type Geo struct {
	CountryCode string  `json:"country_code,omitempty"`
	CityName    string  `json:"city_name,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	TimeZone    string  `json:"time_zone,omitempty"`
}

// RequestInfo describes the inbound HTTP request that triggered the login.
type RequestInfo struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent,omitempty"`
	Geo       *Geo   `json:"geoip,omitempty"`
}

// AuthContext is the per-authentication-event record supplied by the host.
type AuthContext struct {
	SessionID string      `json:"sessionID"`
	Protocol  Protocol    `json:"protocol"`
	Request   RequestInfo `json:"request"`
}

// Login is the login sub-record of a scoring request.
type Login struct {
	UserID             string              `json:"userId"`
	Channel            string              `json:"channel"`
	UsedCaptcha        bool                `json:"usedCaptcha"`
	AuthenticationType *AuthenticationType `json:"authenticationType"`
	Status             string              `json:"status"`
	PasswordUpdateTime *time.Time          `json:"passwordUpdateTime,omitempty"`
}

// ScoringRequest is the payload POSTed to the scoring API.
type ScoringRequest struct {
	APIKey    string `json:"apiKey"`
	EventID   string `json:"eventId"`
	DateTime  string `json:"dateTime"`
	IPAddress string `json:"ipAddress"`
	Login     Login  `json:"login"`
}

// ScoringResponse is the scoring API's answer.
type ScoringResponse struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Decision   Decision `json:"decision"`
	Signals    []string `json:"signals"`
}

// FailOpenResponse returns the synthetic response used whenever the scoring
// service could not be reached or answered with something unusable.
func FailOpenResponse() *ScoringResponse {
	return &ScoringResponse{
		Score:      0,
		Confidence: 0,
		Decision:   DecisionAllow,
		Signals:    []string{SignalUnableToDecision},
	}
}

// IsFailOpen reports whether resp is the synthetic fail-open response.
func (r *ScoringResponse) IsFailOpen() bool {
	return r != nil && len(r.Signals) == 1 && r.Signals[0] == SignalUnableToDecision &&
		r.Decision == DecisionAllow && r.Score == 0 && r.Confidence == 0
}
