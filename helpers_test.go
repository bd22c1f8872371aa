package webauthn

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

var testUserHandle = []byte{
	0xe3, 0xb0, 0xc4, 0x42, 0x98, 0xfc, 0x1c, 0x14,
	0x9a, 0xfb, 0xf4, 0xc8, 0x99, 0x6f, 0xb9, 0x24,
}

func testUserEntity() PublicKeyCredentialUserEntity {
	return PublicKeyCredentialUserEntity{
		PublicKeyCredentialEntity: PublicKeyCredentialEntity{
			Name: "jsmith",
		},
		ID:          URLEncodedBase64(testUserHandle),
		DisplayName: "John Smith",
	}
}

func newTestService(t *testing.T, mutate func(*Config)) (*Service, *MemoryChallengeStore, *MemoryCredentialRepository) {
	t.Helper()
	cfg := &Config{
		RPID:          testRPID,
		RPDisplayName: "Example Corp",
		RPOrigins:     []string{testOrigin},
	}
	if mutate != nil {
		mutate(cfg)
	}
	challenges := NewMemoryChallengeStore(cfg)
	credentials := NewMemoryCredentialRepository()
	svc, err := NewService(cfg, challenges, credentials)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, challenges, credentials
}

//fakeAuthenticator simulates the authenticator side of a ceremony with a
//P-256 key
type fakeAuthenticator struct {
	key          *ecdsa.PrivateKey
	credentialID []byte
	aaguid       [16]byte
	signCount    uint32
}

func newFakeAuthenticator(t *testing.T) *fakeAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("key gen error: %v", err)
	}
	credentialID := make([]byte, 32)
	if _, err := rand.Read(credentialID); err != nil {
		t.Fatalf("credential ID gen error: %v", err)
	}
	a := &fakeAuthenticator{
		key:          key,
		credentialID: credentialID,
	}
	copy(a.aaguid[:], []byte("fake-authnr-0001"))
	return a
}

func (a *fakeAuthenticator) coseKey(t *testing.T) []byte {
	t.Helper()
	crv, err := cbor.Marshal(int(CurveP256))
	if err != nil {
		t.Fatalf("curve marshal error: %v", err)
	}
	x, err := cbor.Marshal(a.key.PublicKey.X.Bytes())
	if err != nil {
		t.Fatalf("X marshal error: %v", err)
	}
	y, err := cbor.Marshal(a.key.PublicKey.Y.Bytes())
	if err != nil {
		t.Fatalf("Y marshal error: %v", err)
	}
	raw, err := MarshalCBOR(&COSEKey{
		Kty:       int(KeyTypeEC2),
		Alg:       int(AlgorithmES256),
		CrvOrNOrK: crv,
		XOrE:      x,
		Y:         y,
	})
	if err != nil {
		t.Fatalf("COSE key marshal error: %v", err)
	}
	return raw
}

//authDataFlags for building authenticator data in tests
const (
	testFlagsUP     = byte(0x01)
	testFlagsUPUV   = byte(0x05)
	testFlagsUPAT   = byte(0x41)
	testFlagsUPUVAT = byte(0x45)
)

func (a *fakeAuthenticator) attestedCredentialData(t *testing.T) []byte {
	t.Helper()
	out := append([]byte{}, a.aaguid[:]...)
	var credLen [2]byte
	binary.BigEndian.PutUint16(credLen[:], uint16(len(a.credentialID)))
	out = append(out, credLen[:]...)
	out = append(out, a.credentialID...)
	out = append(out, a.coseKey(t)...)
	return out
}

func buildAuthData(rpID string, flags byte, signCount uint32, attested []byte) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))
	out := append([]byte{}, rpIDHash[:]...)
	out = append(out, flags)
	var cnt [4]byte
	binary.BigEndian.PutUint32(cnt[:], signCount)
	out = append(out, cnt[:]...)
	out = append(out, attested...)
	return out
}

func clientDataJSON(ceremonyType string, challenge []byte, origin string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"challenge":%q,"origin":%q}`,
		ceremonyType, Encode(challenge), origin,
	))
}

func (a *fakeAuthenticator) sign(t *testing.T, authData, clientData []byte) []byte {
	t.Helper()
	clientDataHash := sha256.Sum256(clientData)
	signed := append(append([]byte{}, authData...), clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	return sig
}

//signRaw signs an arbitrary message the way VerifySignature expects for ES256
func (a *fakeAuthenticator) signRaw(t *testing.T, message []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	return sig
}

//attest produces a registration response for the given challenge, origin,
//and attestation format
func (a *fakeAuthenticator) attest(t *testing.T, challenge []byte, rpID, origin string, flags byte, format AttestationStatementFormat) *AttestationPublicKeyCredential {
	t.Helper()
	authData := buildAuthData(rpID, flags, a.signCount, a.attestedCredentialData(t))
	clientData := clientDataJSON(ClientDataTypeCreate, challenge, origin)

	var attStmt cbor.RawMessage
	switch format {
	case FormatNone:
		attStmt = cbor.RawMessage{0xa0}
	case FormatPacked:
		stmt, err := cbor.Marshal(&packedAttestationStatement{
			Alg: int64(AlgorithmES256),
			Sig: a.sign(t, authData, clientData),
		})
		if err != nil {
			t.Fatalf("attestation statement marshal error: %v", err)
		}
		attStmt = stmt
	default:
		t.Fatalf("unsupported test attestation format %q", format)
	}

	attObj, err := cbor.Marshal(&AttestationObject{
		AuthData: authData,
		Fmt:      format,
		AttStmt:  attStmt,
	})
	if err != nil {
		t.Fatalf("attestation object marshal error: %v", err)
	}

	return &AttestationPublicKeyCredential{
		ID:    Encode(a.credentialID),
		RawID: URLEncodedBase64(a.credentialID),
		Type:  PublicKey,
		Response: AuthenticatorAttestationResponse{
			ClientDataJSON:    URLEncodedBase64(clientData),
			AttestationObject: URLEncodedBase64(attObj),
		},
	}
}

//assert produces an authentication response for the given challenge and
//origin, reporting the authenticator's current sign count
func (a *fakeAuthenticator) assert(t *testing.T, challenge []byte, rpID, origin string, flags byte) *AssertionPublicKeyCredential {
	t.Helper()
	authData := buildAuthData(rpID, flags, a.signCount, nil)
	clientData := clientDataJSON(ClientDataTypeGet, challenge, origin)

	return &AssertionPublicKeyCredential{
		ID:    Encode(a.credentialID),
		RawID: URLEncodedBase64(a.credentialID),
		Type:  PublicKey,
		Response: AuthenticatorAssertionResponse{
			ClientDataJSON:    URLEncodedBase64(clientData),
			AuthenticatorData: URLEncodedBase64(authData),
			Signature:         URLEncodedBase64(a.sign(t, authData, clientData)),
		},
	}
}

//register runs a full happy-path registration for the authenticator and
//returns the stored credential
func (a *fakeAuthenticator) register(t *testing.T, svc *Service, sessionID, name string) *NamedCredential {
	t.Helper()
	ctx := context.Background()
	creation, err := svc.BuildCreationOptions(ctx, sessionID, testUserEntity())
	if err != nil {
		t.Fatalf("BuildCreationOptions: %v", err)
	}
	cred := a.attest(t, creation.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUVAT, FormatNone)
	named, err := svc.FinishRegistration(ctx, sessionID, name, cred)
	if err != nil {
		t.Fatalf("FinishRegistration: %v", err)
	}
	return named
}

//login runs a full happy-path authentication for the authenticator
func (a *fakeAuthenticator) login(t *testing.T, svc *Service, sessionID string) *PublicKeyCredentialSource {
	t.Helper()
	ctx := context.Background()
	request, err := svc.BuildRequestOptions(ctx, sessionID, testUserHandle)
	if err != nil {
		t.Fatalf("BuildRequestOptions: %v", err)
	}
	assertion := a.assert(t, request.PublicKey.Challenge, testRPID, testOrigin, testFlagsUPUV)
	source, err := svc.FinishAuthentication(ctx, sessionID, assertion)
	if err != nil {
		t.Fatalf("FinishAuthentication: %v", err)
	}
	return source
}

//mustJSON marshals v or fails the test
func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return out
}
