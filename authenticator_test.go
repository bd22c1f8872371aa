package webauthn

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestParseAuthenticatorData(t *testing.T) {
	auth := newFakeAuthenticator(t)
	attested := auth.attestedCredentialData(t)

	tests := []struct {
		Name string
		Raw  []byte
		Err  error

		UP        bool
		UV        bool
		AT        bool
		SignCount uint32
	}{
		{
			Name:      "Minimal",
			Raw:       buildAuthData(testRPID, testFlagsUP, 7, nil),
			UP:        true,
			SignCount: 7,
		},
		{
			Name:      "User verified",
			Raw:       buildAuthData(testRPID, testFlagsUPUV, 0, nil),
			UP:        true,
			UV:        true,
			SignCount: 0,
		},
		{
			Name:      "With attested credential data",
			Raw:       buildAuthData(testRPID, testFlagsUPAT, 1, attested),
			UP:        true,
			AT:        true,
			SignCount: 1,
		},
		{
			Name: "Empty",
			Raw:  nil,
			Err:  ErrMalformedAuthenticatorData,
		},
		{
			Name: "Truncated header",
			Raw:  buildAuthData(testRPID, testFlagsUP, 0, nil)[:36],
			Err:  ErrMalformedAuthenticatorData,
		},
		{
			Name: "AT flag without attested data",
			Raw:  buildAuthData(testRPID, testFlagsUPAT, 0, nil),
			Err:  ErrMalformedAuthenticatorData,
		},
		{
			Name: "Attested data truncated before key",
			Raw:  buildAuthData(testRPID, testFlagsUPAT, 0, attested[:20]),
			Err:  ErrMalformedAuthenticatorData,
		},
		{
			Name: "Credential length exceeds buffer",
			Raw: buildAuthData(testRPID, testFlagsUPAT, 0, append(
				append([]byte{}, attested[:16]...),
				0xff, 0xff, //declared credential ID length 65535
			)),
			Err: ErrMalformedAuthenticatorData,
		},
		{
			Name: "Trailing bytes",
			Raw:  append(buildAuthData(testRPID, testFlagsUP, 0, nil), 0x00),
			Err:  ErrMalformedAuthenticatorData,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(tt *testing.T) {
			ad, err := ParseAuthenticatorData(test.Raw)
			if test.Err != nil {
				if !errors.Is(err, test.Err) {
					tt.Fatalf("expected %v, got %v", test.Err, err)
				}
				return
			}
			if err != nil {
				tt.Fatalf("unexpected error %v", err)
			}

			expectedHash := sha256.Sum256([]byte(testRPID))
			if ad.RPIDHash != expectedHash {
				tt.Fatal("RP ID hash mismatch")
			}
			if ad.UP != test.UP || ad.UV != test.UV || ad.AT != test.AT {
				tt.Fatalf("flag mismatch: UP=%t UV=%t AT=%t", ad.UP, ad.UV, ad.AT)
			}
			if ad.SignCount != test.SignCount {
				tt.Fatalf("expected sign count %d, got %d", test.SignCount, ad.SignCount)
			}

			if test.AT {
				if ad.AttestedCredentialData == nil {
					tt.Fatal("expected attested credential data")
				}
				if !bytes.Equal(ad.AttestedCredentialData.CredentialID, auth.credentialID) {
					tt.Fatal("credential ID mismatch")
				}
				if !bytes.Equal(ad.AttestedCredentialData.AAGUID[:], auth.aaguid[:]) {
					tt.Fatal("AAGUID mismatch")
				}
				if !bytes.Equal(ad.AttestedCredentialData.CredentialPublicKey, auth.coseKey(tt)) {
					tt.Fatal("credential public key mismatch")
				}
			}
		})
	}
}

func TestParseAuthenticatorDataExtensions(t *testing.T) {
	//ED flag with a trailing CBOR map of extension outputs
	raw := buildAuthData(testRPID, testFlagsUP|0x80, 3, nil)
	raw = append(raw, 0xa1, 0x62, 'h', 'i', 0xf5) //{"hi": true}

	ad, err := ParseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !ad.ED {
		t.Fatal("expected ED flag")
	}
	if len(ad.Extensions) != 5 {
		t.Fatalf("expected 5 extension bytes, got %d", len(ad.Extensions))
	}

	//truncated extension map
	raw = buildAuthData(testRPID, testFlagsUP|0x80, 3, nil)
	raw = append(raw, 0xa1, 0x62, 'h')
	if _, err := ParseAuthenticatorData(raw); !errors.Is(err, ErrMalformedAuthenticatorData) {
		t.Fatalf("expected ErrMalformedAuthenticatorData, got %v", err)
	}
}
