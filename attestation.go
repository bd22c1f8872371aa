package webauthn

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"

	"github.com/fxamacker/cbor/v2"
)

//AttestationObject contains both authenticator data and an attestation
//statement.
type AttestationObject struct {
	AuthData []byte                     `cbor:"authData"`
	Fmt      AttestationStatementFormat `cbor:"fmt"`
	AttStmt  cbor.RawMessage            `cbor:"attStmt"`
}

//AttestationStatementFormat is the identifier for an attestation statement
//format.
type AttestationStatementFormat string

//enum values for AttestationStatementFormat
const (
	FormatPacked           AttestationStatementFormat = "packed"
	FormatTPM              AttestationStatementFormat = "tpm"
	FormatAndroidKey       AttestationStatementFormat = "android-key"
	FormatAndroidSafetyNet AttestationStatementFormat = "android-safetynet"
	FormatFidoU2F          AttestationStatementFormat = "fido-u2f"
	FormatNone             AttestationStatementFormat = "none"
)

//Valid determines if the Attestation Format Identifier is a registered value
func (asf AttestationStatementFormat) Valid() error {
	switch asf {
	case FormatPacked:
	case FormatTPM:
	case FormatAndroidKey:
	case FormatAndroidSafetyNet:
	case FormatFidoU2F:
	case FormatNone:
	default:
		return NewError("invalid attestation statement format %q", asf)
	}
	return nil
}

//id-fido-gen-ce-aaguid certificate extension
var idFidoGenCeAaguid = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

//verifyAttestationStatement dispatches to the verification procedure for the
//declared format. Formats without an implemented procedure fail closed.
func (s *Service) verifyAttestationStatement(
	format AttestationStatementFormat,
	attStmt cbor.RawMessage,
	rawAuthData []byte,
	authData *AuthenticatorData,
	clientDataHash [32]byte,
) error {
	switch format {
	case FormatNone:
		return verifyNoneAttestationStatement(attStmt)
	case FormatPacked:
		return s.verifyPackedAttestationStatement(attStmt, rawAuthData, authData, clientDataHash)
	}
	return ErrVerifyAttestation.Wrap(NewError("unsupported attestation format %q", format))
}

//verifyNoneAttestationStatement verifies that an attestation statement of
//format "none" is the empty CBOR map
func verifyNoneAttestationStatement(attStmt cbor.RawMessage) error {
	if !bytes.Equal([]byte(attStmt), []byte{0xa0}) {
		return ErrVerifyAttestation.Wrap(NewError("attestation format none with non-empty statement"))
	}
	return nil
}

//packedAttestationStatement is the decoded form of a "packed" statement
type packedAttestationStatement struct {
	Alg int64             `cbor:"alg"`
	Sig []byte            `cbor:"sig"`
	X5C []cbor.RawMessage `cbor:"x5c,omitempty"`
}

//verifyPackedAttestationStatement verifies a "packed" attestation statement:
//either self-attestation signed with the attested credential key, or a
//signature by an attestation certificate carried in x5c.
func (s *Service) verifyPackedAttestationStatement(
	attStmt cbor.RawMessage,
	rawAuthData []byte,
	authData *AuthenticatorData,
	clientDataHash [32]byte,
) error {
	stmt := packedAttestationStatement{}
	if err := cbor.Unmarshal(attStmt, &stmt); err != nil {
		return ErrVerifyAttestation.Wrap(NewError("error decoding packed attestation statement").Wrap(err))
	}

	signed := make([]byte, 0, len(rawAuthData)+len(clientDataHash))
	signed = append(signed, rawAuthData...)
	signed = append(signed, clientDataHash[:]...)

	if len(stmt.X5C) == 0 {
		//self attestation: sig is produced with the credential private key,
		//and alg must match the credential key's algorithm
		credKey := COSEKey{}
		if err := cbor.Unmarshal(authData.AttestedCredentialData.CredentialPublicKey, &credKey); err != nil {
			return ErrVerifyAttestation.Wrap(ErrDecodeCOSEKey.Wrap(err))
		}
		if int64(credKey.Alg) != stmt.Alg {
			return ErrVerifyAttestation.Wrap(
				NewError("statement algorithm %d does not match credential key algorithm %d", stmt.Alg, credKey.Alg),
			)
		}
		if err := VerifySignature(authData.AttestedCredentialData.CredentialPublicKey, signed, stmt.Sig); err != nil {
			return ErrVerifyAttestation.Wrap(err)
		}
		return nil
	}

	certs := make([]*x509.Certificate, 0, len(stmt.X5C))
	for _, raw := range stmt.X5C {
		var der []byte
		if err := cbor.Unmarshal(raw, &der); err != nil {
			return ErrVerifyAttestation.Wrap(NewError("error decoding attestation certificate").Wrap(err))
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return ErrVerifyAttestation.Wrap(NewError("invalid attestation certificate").Wrap(err))
		}
		certs = append(certs, cert)
	}
	attCert := certs[0]

	sigAlg, err := x509SignatureAlgorithm(COSEAlgorithmIdentifier(stmt.Alg))
	if err != nil {
		return ErrVerifyAttestation.Wrap(err)
	}
	if err := attCert.CheckSignature(sigAlg, signed, stmt.Sig); err != nil {
		return ErrVerifyAttestation.Wrap(NewError("attestation certificate signature verification failed").Wrap(err))
	}

	if err := checkPackedCertRequirements(attCert, authData.AttestedCredentialData.AAGUID); err != nil {
		return ErrVerifyAttestation.Wrap(err)
	}

	if s.cfg.AttestationRoots != nil {
		opts := x509.VerifyOptions{Roots: s.cfg.AttestationRoots}
		if len(certs) > 1 {
			opts.Intermediates = x509.NewCertPool()
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
		}
		if _, err := attCert.Verify(opts); err != nil {
			return ErrVerifyAttestation.Wrap(NewError("attestation certificate not anchored in a configured root").Wrap(err))
		}
	}

	return nil
}

//x509SignatureAlgorithm maps a COSE algorithm to the x509 signature
//algorithm used to check an attestation certificate signature
func x509SignatureAlgorithm(alg COSEAlgorithmIdentifier) (x509.SignatureAlgorithm, error) {
	switch alg {
	case AlgorithmES256:
		return x509.ECDSAWithSHA256, nil
	case AlgorithmES384:
		return x509.ECDSAWithSHA384, nil
	case AlgorithmES512:
		return x509.ECDSAWithSHA512, nil
	case AlgorithmRS256:
		return x509.SHA256WithRSA, nil
	case AlgorithmRS384:
		return x509.SHA384WithRSA, nil
	case AlgorithmRS512:
		return x509.SHA512WithRSA, nil
	case AlgorithmPS256:
		return x509.SHA256WithRSAPSS, nil
	case AlgorithmPS384:
		return x509.SHA384WithRSAPSS, nil
	case AlgorithmPS512:
		return x509.SHA512WithRSAPSS, nil
	case AlgorithmEdDSA:
		return x509.PureEd25519, nil
	}
	return x509.UnknownSignatureAlgorithm, NewError("COSE algorithm ID %d not supported for certificate attestation", alg)
}

//checkPackedCertRequirements enforces the packed attestation statement
//certificate requirements
func checkPackedCertRequirements(cert *x509.Certificate, aaguid [16]byte) error {
	if cert.Version != 3 {
		return NewError("attestation certificate version %d, must be 3", cert.Version)
	}
	ou := cert.Subject.OrganizationalUnit
	if len(ou) != 1 || ou[0] != "Authenticator Attestation" {
		return NewError("attestation certificate subject OU must be \"Authenticator Attestation\"")
	}
	if cert.IsCA {
		return NewError("attestation certificate must not be a CA")
	}

	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(idFidoGenCeAaguid) {
			continue
		}
		var certAaguid []byte
		if _, err := asn1.Unmarshal(ext.Value, &certAaguid); err != nil {
			return NewError("error parsing id-fido-gen-ce-aaguid extension").Wrap(err)
		}
		if !bytes.Equal(certAaguid, aaguid[:]) {
			return NewError("certificate AAGUID does not match authenticator data AAGUID")
		}
	}

	return nil
}
