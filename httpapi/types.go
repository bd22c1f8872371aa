package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/keyceremony/webauthn"
)

//Identity supplies the current user for registration and credential
//management, and resolves a presented username for authentication. It is
//implemented by the surrounding application's session and account
//infrastructure.
type Identity interface {
	//CurrentUser returns the logged-in user the request belongs to, or
	//ErrNotAuthenticated.
	CurrentUser(r *http.Request) (webauthn.PublicKeyCredentialUserEntity, error)

	//ResolveUsername maps a presented username to its user handle, or
	//ErrUnknownUser. Callers must not leak the distinction to the client.
	ResolveUsername(ctx context.Context, username string) ([]byte, error)
}

//sentinel errors Identity implementations return
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnknownUser      = errors.New("unknown user")
)

//sessionHeader carries the ceremony session identifier between begin and
//finish calls
const sessionHeader = "X-Session-Id"

//beginLoginRequest is the body of POST /login/begin
type beginLoginRequest struct {
	Username string `json:"username"`
}

//finishRegistrationRequest is the body of POST /registration/finish: the
//attestation credential plus the client-chosen display name
type finishRegistrationRequest struct {
	Name string `json:"name"`
	webauthn.AttestationPublicKeyCredential
}

//finishLoginResponse is the body of a successful POST /login/finish
type finishLoginResponse struct {
	UserHandle webauthn.URLEncodedBase64 `json:"userHandle"`
}

//credentialSummary is the display form of a stored credential
type credentialSummary struct {
	ID        webauthn.URLEncodedBase64 `json:"id"`
	Name      string                    `json:"name"`
	CreatedAt string                    `json:"createdAt"`
	AAGUID    string                    `json:"aaguid,omitempty"`
}

//errorResponse is the body of every error reply
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
