package webauthn

//CollectedClientData represents the contextual bindings of both the WebAuthn
//Relying Party and the client.
type CollectedClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin,omitempty"`
}

//client data ceremony types
const (
	ClientDataTypeCreate = "webauthn.create"
	ClientDataTypeGet    = "webauthn.get"
)

//PublicKeyCredentialType defines the valid credential types.
type PublicKeyCredentialType string

//enum values for PublicKeyCredentialType type
const (
	PublicKey PublicKeyCredentialType = "public-key"
)

//PublicKeyCredentialEntity describes a user account or relying party with
//which a credential is associated.
type PublicKeyCredentialEntity struct {
	Name string `json:"name"`
}

//PublicKeyCredentialRPEntity is used to supply additional relying party
//attributes when creating a new credential.
type PublicKeyCredentialRPEntity struct {
	PublicKeyCredentialEntity
	ID string `json:"id"`
}

//PublicKeyCredentialUserEntity is used to supply additional account
//attributes when creating a new credential. ID is the user handle: an opaque
//byte identifier, stable for the account's lifetime and free of personally
//identifying information.
type PublicKeyCredentialUserEntity struct {
	PublicKeyCredentialEntity
	ID          URLEncodedBase64 `json:"id"`
	DisplayName string           `json:"displayName"`
}

//PublicKeyCredentialParameters is used to supply additional parameters when
//creating a new credential.
type PublicKeyCredentialParameters struct {
	Type PublicKeyCredentialType `json:"type"`
	Alg  COSEAlgorithmIdentifier `json:"alg"`
}

//AuthenticatorTransport defines hints as to how clients might communicate
//with a particular authenticator in order to obtain an assertion for a
//specific credential.
type AuthenticatorTransport string

//enum values for AuthenticatorTransport type
const (
	TransportUSB      AuthenticatorTransport = "usb"
	TransportNFC      AuthenticatorTransport = "nfc"
	TransportBLE      AuthenticatorTransport = "ble"
	TransportHybrid   AuthenticatorTransport = "hybrid"
	TransportInternal AuthenticatorTransport = "internal"
)

//PublicKeyCredentialDescriptor contains the attributes that are specified by
//a caller when referring to a public key credential as an input parameter to
//the create() or get() methods.
type PublicKeyCredentialDescriptor struct {
	Type       PublicKeyCredentialType  `json:"type"`
	ID         URLEncodedBase64         `json:"id"`
	Transports []AuthenticatorTransport `json:"transports,omitempty"`
}

//UserVerificationRequirement describes relying party user verification
//requirements.
type UserVerificationRequirement string

//enum values for UserVerificationRequirement type
const (
	VerificationRequired    UserVerificationRequirement = "required"
	VerificationPreferred   UserVerificationRequirement = "preferred"
	VerificationDiscouraged UserVerificationRequirement = "discouraged"
)

//AuthenticatorAttachment describes authenticators' attachment modalities.
type AuthenticatorAttachment string

//enum values for AuthenticatorAttachment type
const (
	AttachmentPlatform      AuthenticatorAttachment = "platform"
	AttachmentCrossPlatform AuthenticatorAttachment = "cross-platform"
)

//AuthenticatorSelectionCriteria may be used by Relying Parties to specify
//their requirements regarding authenticator attributes.
type AuthenticatorSelectionCriteria struct {
	AuthenticatorAttachment AuthenticatorAttachment     `json:"authenticatorAttachment,omitempty"`
	ResidentKey             string                      `json:"residentKey,omitempty"`
	RequireResidentKey      bool                        `json:"requireResidentKey,omitempty"`
	UserVerification        UserVerificationRequirement `json:"userVerification,omitempty"`
}

//AttestationConveyancePreference may be used by Relying Parties to specify
//their preference regarding attestation conveyance during credential
//generation.
type AttestationConveyancePreference string

//enum values for AttestationConveyancePreference type
const (
	ConveyanceNone     AttestationConveyancePreference = "none"
	ConveyanceIndirect AttestationConveyancePreference = "indirect"
	ConveyanceDirect   AttestationConveyancePreference = "direct"
)

//PublicKeyCredentialCreationOptions is the full option payload sent to the
//client to begin a registration ceremony.
type PublicKeyCredentialCreationOptions struct {
	RP                     PublicKeyCredentialRPEntity     `json:"rp"`
	User                   PublicKeyCredentialUserEntity   `json:"user"`
	Challenge              URLEncodedBase64                `json:"challenge"`
	PubKeyCredParams       []PublicKeyCredentialParameters `json:"pubKeyCredParams"`
	Timeout                uint                            `json:"timeout,omitempty"`
	ExcludeCredentials     []PublicKeyCredentialDescriptor `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection *AuthenticatorSelectionCriteria `json:"authenticatorSelection,omitempty"`
	Attestation            AttestationConveyancePreference `json:"attestation,omitempty"`
}

//PublicKeyCredentialRequestOptions is the full option payload sent to the
//client to begin an authentication ceremony.
type PublicKeyCredentialRequestOptions struct {
	Challenge        URLEncodedBase64                `json:"challenge"`
	Timeout          uint                            `json:"timeout,omitempty"`
	RPID             string                          `json:"rpId,omitempty"`
	AllowCredentials []PublicKeyCredentialDescriptor `json:"allowCredentials,omitempty"`
	UserVerification UserVerificationRequirement     `json:"userVerification,omitempty"`
}

//CredentialCreation wraps creation options the way the client credential API
//expects to receive them.
type CredentialCreation struct {
	PublicKey PublicKeyCredentialCreationOptions `json:"publicKey"`
}

//CredentialRequest wraps request options the way the client credential API
//expects to receive them.
type CredentialRequest struct {
	PublicKey PublicKeyCredentialRequestOptions `json:"publicKey"`
}

//AuthenticatorAttestationResponse is the authenticator's response to a
//credential creation request.
type AuthenticatorAttestationResponse struct {
	ClientDataJSON    URLEncodedBase64 `json:"clientDataJSON"`
	AttestationObject URLEncodedBase64 `json:"attestationObject"`
}

//AttestationPublicKeyCredential is the raw client response to a registration
//ceremony.
type AttestationPublicKeyCredential struct {
	ID         string                           `json:"id"`
	RawID      URLEncodedBase64                 `json:"rawId"`
	Type       PublicKeyCredentialType          `json:"type"`
	Transports []AuthenticatorTransport         `json:"transports,omitempty"`
	Response   AuthenticatorAttestationResponse `json:"response"`
}

//AuthenticatorAssertionResponse is the authenticator's response to a
//credential request.
type AuthenticatorAssertionResponse struct {
	ClientDataJSON    URLEncodedBase64 `json:"clientDataJSON"`
	AuthenticatorData URLEncodedBase64 `json:"authenticatorData"`
	Signature         URLEncodedBase64 `json:"signature"`
	UserHandle        URLEncodedBase64 `json:"userHandle,omitempty"`
}

//AssertionPublicKeyCredential is the raw client response to an authentication
//ceremony.
type AssertionPublicKeyCredential struct {
	ID       string                         `json:"id"`
	RawID    URLEncodedBase64               `json:"rawId"`
	Type     PublicKeyCredentialType        `json:"type"`
	Response AuthenticatorAssertionResponse `json:"response"`
}
