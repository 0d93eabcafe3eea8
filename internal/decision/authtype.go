package decision

var protocolAuthTypes = map[Protocol]AuthenticationType{
	ProtocolOIDCBasicProfile:    AuthTypePassword,
	ProtocolOIDCImplicitProfile: AuthTypePassword,
	ProtocolOAuth2ResourceOwner: AuthTypePassword,
	ProtocolOAuth2Password:      AuthTypePassword,

	ProtocolSAMLP:                AuthTypeSingleSignOn,
	ProtocolWSFed:                AuthTypeSingleSignOn,
	ProtocolWSTrustUsernameMixed: AuthTypeSingleSignOn,

	ProtocolOAuth2RefreshToken:           AuthTypeKey,
	ProtocolOAuth2ResourceOwnerJWTBearer: AuthTypeKey,
}

// MapAuthenticationType returns the authentication type for a protocol.
// The match is exact. Protocols without a category (delegation,
// redirect-callback, anything unknown) return false.
func MapAuthenticationType(p Protocol) (AuthenticationType, bool) {
	t, ok := protocolAuthTypes[p]
	return t, ok
}

// AuthenticationTypes returns a copy of the protocol table.
func AuthenticationTypes() map[Protocol]AuthenticationType {
	out := make(map[Protocol]AuthenticationType, len(protocolAuthTypes))
	for p, t := range protocolAuthTypes {
		out[p] = t
	}
	return out
}
