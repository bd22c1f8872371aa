package webauthn

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

//authenticator data flag bits
const (
	flagUserPresent    uint8 = 0x01
	flagUserVerified   uint8 = 0x04
	flagAttestedData   uint8 = 0x40
	flagExtensionsData uint8 = 0x80
)

//minimum authenticator data length: RP ID hash + flags + sign count
const minAuthDataLength = 32 + 1 + 4

//AuthenticatorData encodes contextual bindings made by the authenticator.
type AuthenticatorData struct {
	RPIDHash               [32]byte
	UP                     bool
	UV                     bool
	AT                     bool
	ED                     bool
	SignCount              uint32
	AttestedCredentialData *AttestedCredentialData
	Extensions             cbor.RawMessage
}

//AttestedCredentialData is a variable-length byte array added to the
//authenticator data when generating an attestation object for a given
//credential.
type AttestedCredentialData struct {
	AAGUID              [16]byte
	CredentialID        []byte
	CredentialPublicKey cbor.RawMessage
}

//ParseAuthenticatorData decodes the flat authenticator data structure. Every
//declared length is checked against the remaining buffer, and trailing bytes
//beyond the declared contents are rejected; a length that disagrees with the
//buffer must never be decoded as a shorter valid structure.
func ParseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	if len(raw) < minAuthDataLength {
		return nil, ErrMalformedAuthenticatorData.Wrap(
			NewError("authenticator data is %d bytes, need at least %d", len(raw), minAuthDataLength),
		)
	}

	ad := &AuthenticatorData{}
	copy(ad.RPIDHash[:], raw[:32])

	flags := raw[32]
	ad.UP = flags&flagUserPresent != 0
	ad.UV = flags&flagUserVerified != 0
	ad.AT = flags&flagAttestedData != 0
	ad.ED = flags&flagExtensionsData != 0

	ad.SignCount = binary.BigEndian.Uint32(raw[33:37])
	rest := raw[37:]

	if ad.AT {
		acd, n, err := parseAttestedCredentialData(rest)
		if err != nil {
			return nil, err
		}
		ad.AttestedCredentialData = acd
		rest = rest[n:]
	}

	if ad.ED {
		n, err := cborItemLength(rest)
		if err != nil {
			return nil, ErrMalformedAuthenticatorData.Wrap(
				NewError("error reading extension data").Wrap(err),
			)
		}
		ad.Extensions = cbor.RawMessage(rest[:n])
		rest = rest[n:]
	}

	if len(rest) > 0 {
		return nil, ErrMalformedAuthenticatorData.Wrap(
			NewError("%d trailing bytes after authenticator data", len(rest)),
		)
	}

	return ad, nil
}

func parseAttestedCredentialData(raw []byte) (*AttestedCredentialData, int, error) {
	if len(raw) < 18 {
		return nil, 0, ErrMalformedAuthenticatorData.Wrap(
			NewError("attested credential data is %d bytes, need at least 18", len(raw)),
		)
	}

	acd := &AttestedCredentialData{}
	copy(acd.AAGUID[:], raw[:16])

	credLen := int(binary.BigEndian.Uint16(raw[16:18]))
	if len(raw[18:]) < credLen {
		return nil, 0, ErrMalformedAuthenticatorData.Wrap(
			NewError("declared credential ID length %d exceeds remaining %d bytes", credLen, len(raw[18:])),
		)
	}
	acd.CredentialID = append([]byte{}, raw[18:18+credLen]...)

	keyStart := 18 + credLen
	n, err := cborItemLength(raw[keyStart:])
	if err != nil {
		return nil, 0, ErrMalformedAuthenticatorData.Wrap(
			NewError("error reading credential public key").Wrap(err),
		)
	}
	acd.CredentialPublicKey = cbor.RawMessage(append([]byte{}, raw[keyStart:keyStart+n]...))

	return acd, keyStart + n, nil
}

//cborItemLength returns the encoded length of the single CBOR item at the
//start of raw, failing on truncated items
func cborItemLength(raw []byte) (int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(raw))
	var item cbor.RawMessage
	if err := dec.Decode(&item); err != nil {
		return 0, err
	}
	return dec.NumBytesRead(), nil
}
