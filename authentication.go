package webauthn

import (
	"context"
	"crypto/sha256"
	"errors"
)

//FinishAuthentication completes the authentication ceremony by validating
//the provided assertion against the challenge issued for this session and
//the stored public key, and returns the credential that authenticated. The
//sign counter is advanced only on full success; any failure leaves stored
//state untouched.
func (s *Service) FinishAuthentication(ctx context.Context, sessionID string, cred *AssertionPublicKeyCredential) (*PublicKeyCredentialSource, error) {
	//1. Using the credential's id attribute, look up the corresponding
	//credential public key.
	stored, err := s.credentials.FindByCredentialID(ctx, cred.RawID)
	if err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}

	//2. Let C be the client data claimed as used for the signature; verify
	//that C.type is webauthn.get, that C.origin matches an origin of this
	//Relying Party, and that the response is not cross-origin unless
	//configuration allows it.
	c, err := parseClientData(cred.Response.ClientDataJSON)
	if err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}
	if err := s.verifyClientData(c, ClientDataTypeGet); err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}

	//3. Verify that C.challenge matches a challenge this server issued for
	//this session, consuming it so a resubmitted assertion is rejected
	//before any signature work.
	challenge, err := s.consumeClientChallenge(ctx, sessionID, KindAuthentication, c)
	if err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}

	//4. If the ceremony was initiated for a known user, or the response
	//names a user handle, both must identify the credential's owner.
	if len(challenge.UserHandle) > 0 && !stored.OwnedBy(challenge.UserHandle) {
		return nil, ErrVerifyAuthentication.Wrap(NewError("credential is not owned by the authenticating user"))
	}
	if len(cred.Response.UserHandle) > 0 && !stored.OwnedBy(cred.Response.UserHandle) {
		return nil, ErrVerifyAuthentication.Wrap(NewError("response user handle does not match credential owner"))
	}

	//5. Verify the rpIdHash, the User Present bit, and the User Verified bit
	//if user verification is required.
	authData, err := ParseAuthenticatorData(cred.Response.AuthenticatorData)
	if err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}
	if err := s.verifyRPIDHash(authData); err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}
	if err := s.verifyFlags(authData); err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}

	//6. Verify that sig is a valid signature over the binary concatenation
	//of authData and the SHA-256 hash of clientDataJSON, using the stored
	//public key.
	clientDataHash := sha256.Sum256(cred.Response.ClientDataJSON)
	signed := make([]byte, 0, len(cred.Response.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, cred.Response.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)
	if err := VerifySignature(stored.PublicKey, signed, cred.Response.Signature); err != nil {
		return nil, ErrVerifyAuthentication.Wrap(err)
	}

	//7. If the stored signature counter is nonzero, the reported counter
	//must be strictly greater: a counter that stalls or regresses means a
	//second authenticator holds a copy of the credential private key. This
	//is a hard failure, and stored state is not updated.
	if stored.SignCount != 0 && authData.SignCount <= stored.SignCount {
		return nil, ErrVerifyAuthentication.Wrap(ErrPossibleCloneDetected.Wrap(
			NewError("reported sign count %d, stored %d", authData.SignCount, stored.SignCount),
		))
	}

	//8. Advance the stored counter. The repository re-checks against the
	//value at write time, so of two racing authentications that both read
	//the same stored counter, only one lands; the loser is treated as a
	//clone signal.
	if authData.SignCount > stored.SignCount {
		if err := s.credentials.UpdateSignCount(ctx, stored.CredentialID, authData.SignCount); err != nil {
			if errors.Is(err, ErrStaleOrDecreasingCounter) {
				return nil, ErrVerifyAuthentication.Wrap(ErrPossibleCloneDetected.Wrap(err))
			}
			return nil, ErrVerifyAuthentication.Wrap(err)
		}
		stored.SignCount = authData.SignCount
	}

	return &stored.PublicKeyCredentialSource, nil
}
