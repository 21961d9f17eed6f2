package credentials

// LoginRequest is the request for signing in.
type LoginRequest struct {
	UsrID string `json:"usr_id"`
}

// LogoutRequest is the request for signing out.
type LogoutRequest struct{}

// WhoAmIRequest is the request for the current identity.
type WhoAmIRequest struct{}

// IdentityResponse describes the signed-in member.
type IdentityResponse struct {
	Authenticated bool   `json:"authenticated"`
	MemberID      string `json:"member_id,omitempty"`
	Name          string `json:"name,omitempty"`
}
