package webauthn

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestFinishRegistration(t *testing.T) {
	svc, _, repo := newTestService(t, nil)
	auth := newFakeAuthenticator(t)
	auth.signCount = 5

	named := auth.register(t, svc, "session-1", "Security key")

	if named.Name != "Security key" {
		t.Fatalf("expected name %q, got %q", "Security key", named.Name)
	}
	if !bytes.Equal(named.CredentialID, auth.credentialID) {
		t.Fatal("credential ID mismatch")
	}
	if !bytes.Equal(named.UserHandle, testUserHandle) {
		t.Fatal("user handle mismatch")
	}
	if named.SignCount != 5 {
		t.Fatalf("expected sign count 5, got %d", named.SignCount)
	}
	if !bytes.Equal(named.AAGUID, auth.aaguid[:]) {
		t.Fatal("AAGUID mismatch")
	}

	//the stored public key verifies the fake authenticator's signatures
	stored, err := repo.FindByCredentialID(context.Background(), auth.credentialID)
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	message := []byte("check the stored key round-tripped")
	if err := VerifySignature(stored.PublicKey, message, auth.signRaw(t, message)); err != nil {
		t.Fatalf("stored public key does not verify: %v", err)
	}
}

func TestFinishRegistrationPackedSelfAttestation(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	auth := newFakeAuthenticator(t)
	ctx := context.Background()

	creation, err := svc.BuildCreationOptions(ctx, "session-1", testUserEntity())
	if err != nil {
		t.Fatalf("BuildCreationOptions: %v", err)
	}

	cred := auth.attest(t, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatPacked)
	if _, err := svc.FinishRegistration(ctx, "session-1", "Packed key", cred); err != nil {
		t.Fatalf("FinishRegistration: %v", err)
	}
}

func TestFinishRegistrationPackedBadSignature(t *testing.T) {
	svc, _, repo := newTestService(t, nil)
	auth := newFakeAuthenticator(t)
	ctx := context.Background()

	creation, err := svc.BuildCreationOptions(ctx, "session-1", testUserEntity())
	if err != nil {
		t.Fatalf("BuildCreationOptions: %v", err)
	}

	//sign the statement with a key other than the attested credential key
	other := newFakeAuthenticator(t)
	authData := buildAuthData(testRPID, testFlagsUPUVAT, 0, auth.attestedCredentialData(t))
	clientData := clientDataJSON(ClientDataTypeCreate, creation.PublicKey.Challenge, testOrigin)

	stmt, err := cbor.Marshal(&packedAttestationStatement{
		Alg: int64(AlgorithmES256),
		Sig: other.sign(t, authData, clientData),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	attObj, err := cbor.Marshal(&AttestationObject{
		AuthData: authData,
		Fmt:      FormatPacked,
		AttStmt:  stmt,
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	cred := &AttestationPublicKeyCredential{
		ID:    Encode(auth.credentialID),
		RawID: URLEncodedBase64(auth.credentialID),
		Type:  PublicKey,
		Response: AuthenticatorAttestationResponse{
			ClientDataJSON:    URLEncodedBase64(clientData),
			AttestationObject: URLEncodedBase64(attObj),
		},
	}

	_, err = svc.FinishRegistration(ctx, "session-1", "Bad key", cred)
	if !errors.Is(err, ErrSignatureVerification) {
		t.Fatalf("expected ErrSignatureVerification, got %v", err)
	}
	assertRepositoryEmpty(t, repo)
}

func TestFinishRegistrationChallengeReplay(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	auth := newFakeAuthenticator(t)
	ctx := context.Background()

	creation, err := svc.BuildCreationOptions(ctx, "session-1", testUserEntity())
	if err != nil {
		t.Fatalf("BuildCreationOptions: %v", err)
	}
	cred := auth.attest(t, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)

	if _, err := svc.FinishRegistration(ctx, "session-1", "First", cred); err != nil {
		t.Fatalf("FinishRegistration: %v", err)
	}

	//the same response a second time finds no live challenge
	_, err = svc.FinishRegistration(ctx, "session-1", "Second", cred)
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestFinishRegistrationFailures(t *testing.T) {
	tests := []struct {
		Name   string
		Config func(*Config)
		Cred   func(*testing.T, *fakeAuthenticator, *CredentialCreation) *AttestationPublicKeyCredential
		Err    error
	}{
		{
			Name: "Origin mismatch",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				return auth.attest(tt, creation.PublicKey.Challenge, testRPID, "https://evil.example.net", testFlagsUPUVAT, FormatNone)
			},
			Err: ErrOriginMismatch,
		},
		{
			Name: "Relying party mismatch",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				return auth.attest(tt, creation.PublicKey.Challenge, "other.example.com", testOrigin, testFlagsUPUVAT, FormatNone)
			},
			Err: ErrRelyingPartyMismatch,
		},
		{
			Name: "Stale challenge",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				stale := make([]byte, 32)
				return auth.attest(tt, stale, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
			},
			Err: ErrChallengeMismatch,
		},
		{
			Name: "User present flag missing",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				return auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPAT&^0x01, FormatNone)
			},
			Err: ErrVerifyRegistration,
		},
		{
			Name:   "User verification required but not performed",
			Config: func(c *Config) { c.UserVerification = VerificationRequired },
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				return auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPAT, FormatNone)
			},
			Err: ErrVerifyRegistration,
		},
		{
			Name: "Attested credential data missing",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				cred := auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
				attObj, err := MarshalCBOR(&AttestationObject{
					AuthData: buildAuthData(testRPID, testFlagsUPUV, 0, nil),
					Fmt:      FormatNone,
					AttStmt:  []byte{0xa0},
				})
				if err != nil {
					tt.Fatalf("marshal error: %v", err)
				}
				cred.Response.AttestationObject = URLEncodedBase64(attObj)
				return cred
			},
			Err: ErrVerifyRegistration,
		},
		{
			Name: "Credential ID does not match attested ID",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				cred := auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
				cred.RawID = URLEncodedBase64([]byte("some-other-credential"))
				return cred
			},
			Err: ErrVerifyRegistration,
		},
		{
			Name:   "Format not accepted",
			Config: func(c *Config) { c.AttestationFormats = []AttestationStatementFormat{FormatPacked} },
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				return auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
			},
			Err: ErrVerifyRegistration,
		},
		{
			Name: "Malformed attestation object",
			Cred: func(tt *testing.T, auth *fakeAuthenticator, creation *CredentialCreation) *AttestationPublicKeyCredential {
				cred := auth.attest(tt, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
				cred.Response.AttestationObject = URLEncodedBase64([]byte{0xff, 0xff})
				return cred
			},
			Err: ErrMalformedInput,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(tt *testing.T) {
			svc, _, repo := newTestService(tt, test.Config)
			auth := newFakeAuthenticator(tt)
			ctx := context.Background()

			creation, err := svc.BuildCreationOptions(ctx, "session-1", testUserEntity())
			if err != nil {
				tt.Fatalf("BuildCreationOptions: %v", err)
			}

			_, err = svc.FinishRegistration(ctx, "session-1", "Key", test.Cred(tt, auth, creation))
			if !errors.Is(err, test.Err) {
				tt.Fatalf("expected %v, got %v", test.Err, err)
			}
			assertRepositoryEmpty(tt, repo)
		})
	}
}

func TestFinishRegistrationDuplicateCredential(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	auth := newFakeAuthenticator(t)
	ctx := context.Background()

	auth.register(t, svc, "session-1", "Original")

	//the same authenticator presented for a different account
	otherUser := PublicKeyCredentialUserEntity{
		PublicKeyCredentialEntity: PublicKeyCredentialEntity{
			Name: "mdoe",
		},
		ID:          URLEncodedBase64([]byte("other-user-handle-01")),
		DisplayName: "Mary Doe",
	}
	creation, err := svc.BuildCreationOptions(ctx, "session-2", otherUser)
	if err != nil {
		t.Fatalf("BuildCreationOptions: %v", err)
	}
	cred := auth.attest(t, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)

	_, err = svc.FinishRegistration(ctx, "session-2", "Stolen", cred)
	if !errors.Is(err, ErrDuplicateCredential) {
		t.Fatalf("expected ErrDuplicateCredential, got %v", err)
	}
}

func assertRepositoryEmpty(t *testing.T, repo *MemoryCredentialRepository) {
	t.Helper()
	creds, err := repo.FindAllByUser(context.Background(), testUserHandle)
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if len(creds) != 0 {
		t.Fatalf("expected no stored credentials, found %d", len(creds))
	}
}
