package webauthn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"
)

//parseClientData parses a client data JSON object into CollectedClientData
func parseClientData(jsonText []byte) (*CollectedClientData, error) {
	c := CollectedClientData{}
	if err := json.Unmarshal(jsonText, &c); err != nil {
		return nil, ErrMalformedInput.Wrap(NewError("error unmarshaling client data JSON").Wrap(err))
	}
	return &c, nil
}

//verifyClientData checks the ceremony type, origin, and cross-origin flag of
//the collected client data against the relying party configuration
func (s *Service) verifyClientData(c *CollectedClientData, ceremonyType string) error {
	if c.Type != ceremonyType {
		return NewError("client data type is %q, not %q", c.Type, ceremonyType)
	}
	if !s.cfg.originAllowed(c.Origin) {
		return ErrOriginMismatch.Wrap(NewError("origin %q is not an accepted origin", c.Origin))
	}
	if c.CrossOrigin && !s.cfg.AllowCrossOrigin {
		return ErrOriginMismatch.Wrap(NewError("cross-origin responses are not accepted"))
	}
	return nil
}

//consumeClientChallenge decodes the challenge advertised in client data and
//consumes the matching server-issued challenge for this session and kind.
//This happens before any cryptography: a response not bound to a live
//challenge is rejected without touching the signature.
func (s *Service) consumeClientChallenge(ctx context.Context, sessionID string, kind CeremonyKind, c *CollectedClientData) (*CeremonyChallenge, error) {
	presented, err := Decode(c.Challenge)
	if err != nil {
		return nil, err
	}
	return s.challenges.Consume(ctx, sessionID, kind, presented)
}

//verifyRPIDHash checks that the relying party ID hash in authenticator data
//is the SHA-256 of the configured relying party identifier
func (s *Service) verifyRPIDHash(authData *AuthenticatorData) error {
	expected := sha256.Sum256([]byte(s.cfg.RPID))
	if !bytes.Equal(authData.RPIDHash[:], expected[:]) {
		return ErrRelyingPartyMismatch.Wrap(NewError("authenticator data RP ID hash does not match %q", s.cfg.RPID))
	}
	return nil
}

//verifyFlags checks the user-present flag, and the user-verified flag when
//the configuration demands verification
func (s *Service) verifyFlags(authData *AuthenticatorData) error {
	if !authData.UP {
		return NewError("user present flag is not set")
	}
	if s.cfg.UserVerification == VerificationRequired && !authData.UV {
		return NewError("user verification required but user verified flag is not set")
	}
	return nil
}

//FinishRegistration completes the registration ceremony by validating the
//provided attestation response against the challenge issued for this
//session, and persists the new credential under the given display name.
//Every step is a hard fail: nothing is persisted unless the whole response
//verifies.
func (s *Service) FinishRegistration(ctx context.Context, sessionID, name string, cred *AttestationPublicKeyCredential) (*NamedCredential, error) {
	//1. Let C be the client data claimed as collected during the credential
	//creation.
	c, err := parseClientData(cred.Response.ClientDataJSON)
	if err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//2. Verify that the value of C.type is webauthn.create, that C.origin
	//matches an origin of this Relying Party, and that the response is not
	//cross-origin unless configuration allows it.
	if err := s.verifyClientData(c, ClientDataTypeCreate); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//3. Verify that the value of C.challenge matches a challenge this server
	//issued for this session, consuming it so it can never be used again.
	challenge, err := s.consumeClientChallenge(ctx, sessionID, KindRegistration, c)
	if err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//4. Compute the hash of response.clientDataJSON using SHA-256.
	clientDataHash := sha256.Sum256(cred.Response.ClientDataJSON)

	//5. Perform CBOR decoding on the attestationObject field to obtain the
	//attestation statement format fmt, the authenticator data authData, and
	//the attestation statement attStmt.
	attObj := AttestationObject{}
	if err := UnmarshalCBOR(cred.Response.AttestationObject, &attObj); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}
	authData, err := ParseAuthenticatorData(attObj.AuthData)
	if err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//6. Verify that the rpIdHash in authData is the SHA-256 hash of the RP
	//ID expected by the Relying Party.
	if err := s.verifyRPIDHash(authData); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//7. Verify the User Present bit, and the User Verified bit if user
	//verification is required for this registration.
	if err := s.verifyFlags(authData); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//8. The attested credential data must be present, and the credential ID
	//the client advertises must be the attested one.
	if !authData.AT || authData.AttestedCredentialData == nil {
		return nil, ErrVerifyRegistration.Wrap(NewError("attested credential data flag is not set"))
	}
	attested := authData.AttestedCredentialData
	if len(cred.RawID) > 0 && !bytes.Equal(cred.RawID, attested.CredentialID) {
		return nil, ErrVerifyRegistration.Wrap(NewError("response credential ID does not match attested credential ID"))
	}

	//9. Determine the attestation statement format and check it against the
	//formats this Relying Party accepts; "none" slips through only when the
	//configuration permits unattested registration.
	if err := attObj.Fmt.Valid(); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}
	if !s.cfg.formatAllowed(attObj.Fmt) {
		return nil, ErrVerifyRegistration.Wrap(NewError("attestation format %q is not accepted", attObj.Fmt))
	}

	//10. Verify that attStmt is a correct attestation statement, conveying a
	//valid attestation signature, using the format's verification procedure
	//given attStmt, authData, and the client data hash.
	if err := s.verifyAttestationStatement(attObj.Fmt, attObj.AttStmt, attObj.AuthData, authData, clientDataHash); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	//11. Decode the attested COSE public key, rejecting unsupported
	//algorithms, and re-encode it in canonical CTAP2 form for storage.
	coseKey := COSEKey{}
	if err := UnmarshalCBOR(attested.CredentialPublicKey, &coseKey); err != nil {
		return nil, ErrVerifyRegistration.Wrap(ErrDecodeCOSEKey.Wrap(err))
	}
	if _, err := DecodePublicKey(&coseKey); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}
	publicKey, err := MarshalCBOR(&coseKey)
	if err != nil {
		return nil, ErrVerifyRegistration.Wrap(NewError("unable to re-encode credential public key").Wrap(err))
	}

	//12. Register the new credential for the user the creation options were
	//issued to. A duplicate here means the same authenticator is already
	//registered, possibly to a different account, and is surfaced as such
	//rather than as a cryptographic failure.

	named := &NamedCredential{
		PublicKeyCredentialSource: PublicKeyCredentialSource{
			CredentialID: attested.CredentialID,
			PublicKey:    publicKey,
			SignCount:    authData.SignCount,
			UserHandle:   challenge.UserHandle,
			Transports:   cred.Transports,
			AAGUID:       attested.AAGUID[:],
		},
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.credentials.Save(ctx, named); err != nil {
		return nil, ErrVerifyRegistration.Wrap(err)
	}

	return named, nil
}
