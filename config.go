package webauthn

import (
	"crypto/x509"
	"time"
)

//Config is the immutable, process-wide relying party configuration.
type Config struct {
	//RPID is the Relying Party identifier, the effective domain every
	//ceremony is scoped to. Example: "example.com"
	RPID string `yaml:"id" json:"id"`

	//RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	//RPOrigins are the origins accepted in client data. A response whose
	//origin is not an exact match of one of these fails the ceremony.
	RPOrigins []string `yaml:"origins" json:"origins"`

	//Timeout is the ceremony timeout hint sent to the client.
	//Default: 60 seconds.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	//UserVerification is the user verification requirement placed in the
	//options and enforced during validation when set to "required".
	//Default: "preferred".
	UserVerification UserVerificationRequirement `yaml:"user_verification" json:"user_verification"`

	//AttestationPreference is the attestation conveyance preference sent in
	//creation options. Default: "none".
	AttestationPreference AttestationConveyancePreference `yaml:"attestation" json:"attestation"`

	//ChallengeLength is the size in bytes of generated challenges.
	//Default 32, minimum 16.
	ChallengeLength int `yaml:"challenge_length" json:"challenge_length"`

	//ChallengeMaxAge bounds how old an outstanding challenge may be when it
	//is consumed. Zero means the 2 minute default; a negative value disables
	//the age check.
	ChallengeMaxAge time.Duration `yaml:"challenge_max_age" json:"challenge_max_age"`

	//AttestationFormats lists the attestation statement formats accepted at
	//registration. Registration with a format outside this list fails, so
	//leaving "none" out of the list is how unattested registration is
	//forbidden. Default: none, packed.
	AttestationFormats []AttestationStatementFormat `yaml:"attestation_formats" json:"attestation_formats"`

	//AttestationRoots holds trust anchors for certificate-based attestation
	//formats. When nil, certificate chains are not verified against an
	//anchor set; the statement signature and certificate requirements are
	//still enforced.
	AttestationRoots *x509.CertPool `yaml:"-" json:"-"`

	//AllowCrossOrigin permits responses whose client data carries the
	//crossOrigin flag. Default false.
	AllowCrossOrigin bool `yaml:"allow_cross_origin" json:"allow_cross_origin"`
}

//Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return NewError("RPID is required")
	}
	if c.RPDisplayName == "" {
		return NewError("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return NewError("at least one RPOrigin is required")
	}
	if c.ChallengeLength < 16 {
		return NewError("challenge length %d below 16 byte minimum", c.ChallengeLength)
	}

	switch c.UserVerification {
	case VerificationRequired, VerificationPreferred, VerificationDiscouraged:
	default:
		return NewError("invalid user verification requirement %q", c.UserVerification)
	}

	switch c.AttestationPreference {
	case ConveyanceNone, ConveyanceIndirect, ConveyanceDirect:
	default:
		return NewError("invalid attestation preference %q", c.AttestationPreference)
	}

	for _, f := range c.AttestationFormats {
		if err := f.Valid(); err != nil {
			return err
		}
	}

	return nil
}

//SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = VerificationPreferred
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = ConveyanceNone
	}
	if c.ChallengeLength == 0 {
		c.ChallengeLength = 32
	}
	if c.ChallengeMaxAge == 0 {
		c.ChallengeMaxAge = 2 * time.Minute
	}
	if len(c.AttestationFormats) == 0 {
		c.AttestationFormats = SupportedAttestationStatementFormats()
	}
}

//originAllowed reports whether origin exactly matches a configured origin
func (c *Config) originAllowed(origin string) bool {
	for _, o := range c.RPOrigins {
		if origin == o {
			return true
		}
	}
	return false
}

//formatAllowed reports whether the attestation statement format is accepted
func (c *Config) formatAllowed(format AttestationStatementFormat) bool {
	for _, f := range c.AttestationFormats {
		if format == f {
			return true
		}
	}
	return false
}

//timeoutMillis converts the configured timeout to the milliseconds value
//carried in options payloads
func (c *Config) timeoutMillis() uint {
	return uint(c.Timeout / time.Millisecond)
}
