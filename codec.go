package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

//Decode decodes an unpadded URL-safe base64 string into bytes. Invalid
//alphabet characters or padding fail with ErrMalformedInput rather than
//decoding a truncated prefix.
func Decode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrMalformedInput.Wrap(err)
	}
	return b, nil
}

//Encode encodes bytes as an unpadded URL-safe base64 string
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

//UnmarshalCBOR decodes a single CBOR item into v. Truncated items and
//trailing garbage both fail with ErrMalformedInput.
func UnmarshalCBOR(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return ErrMalformedInput.Wrap(err)
	}
	return nil
}

//ctapEncMode marshals CBOR with CTAP2 canonical options, used to re-encode
//stored public keys in a stable byte form
var ctapEncMode, _ = cbor.CTAP2EncOptions().EncMode()

//MarshalCBOR encodes v with CTAP2 canonical encoding options
func MarshalCBOR(v interface{}) ([]byte, error) {
	return ctapEncMode.Marshal(v)
}

//URLEncodedBase64 is a byte slice which marshals to and from an unpadded
//URL-safe base64 JSON string, the form binary fields take on the wire.
type URLEncodedBase64 []byte

//MarshalJSON implements json.Marshaler
func (e URLEncodedBase64) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return json.Marshal(Encode(e))
}

//UnmarshalJSON implements json.Unmarshaler. Some clients pad their base64;
//padding is stripped before decoding.
func (e *URLEncodedBase64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrMalformedInput.Wrap(err)
	}
	b, err := Decode(strings.TrimRight(s, "="))
	if err != nil {
		return err
	}
	*e = b
	return nil
}
