//Package webauthn implements the server half of the WebAuthn registration and
//authentication ceremonies: issuing session-bound challenges, building the
//credential creation and request options sent to the client, and verifying
//the attestation and assertion responses the client returns. Challenge and
//credential persistence are pluggable through the ChallengeStore and
//CredentialRepository interfaces; in-memory implementations suitable for
//development and testing are included.
package webauthn

import "context"

//Service binds a relying party configuration to a challenge store and a
//credential repository and exposes the ceremony operations.
type Service struct {
	cfg         *Config
	challenges  ChallengeStore
	credentials CredentialRepository
}

//NewService validates the configuration, applies defaults, and returns a
//Service ready to run ceremonies.
func NewService(cfg *Config, challenges ChallengeStore, credentials CredentialRepository) (*Service, error) {
	if cfg == nil {
		return nil, NewError("nil config")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if challenges == nil {
		return nil, NewError("nil challenge store")
	}
	if credentials == nil {
		return nil, NewError("nil credential repository")
	}
	return &Service{
		cfg:         cfg,
		challenges:  challenges,
		credentials: credentials,
	}, nil
}

//Config returns the relying party configuration the service was built with.
func (s *Service) Config() *Config {
	return s.cfg
}

//Credentials returns the named credentials registered to the given user
//handle, for display and exclude-list purposes.
func (s *Service) Credentials(ctx context.Context, userHandle []byte) ([]NamedCredential, error) {
	return s.credentials.FindAllByUser(ctx, userHandle)
}

//DeleteCredential removes a single credential owned by the given user handle.
//It returns false without error when the credential does not exist or belongs
//to a different user, so the caller can distinguish a no-op from a deletion.
func (s *Service) DeleteCredential(ctx context.Context, userHandle, credentialID []byte) (bool, error) {
	cred, err := s.credentials.FindByCredentialID(ctx, credentialID)
	if err != nil {
		if IsUnknownCredential(err) {
			return false, nil
		}
		return false, err
	}
	if !cred.OwnedBy(userHandle) {
		return false, nil
	}
	return s.credentials.DeleteByID(ctx, credentialID)
}

//DeleteAllCredentials removes every credential owned by the given user
//handle.
func (s *Service) DeleteAllCredentials(ctx context.Context, userHandle []byte) error {
	return s.credentials.DeleteAllByUser(ctx, userHandle)
}

//SupportedAttestationStatementFormats returns the list of attestation formats
//implemented by the library.
func SupportedAttestationStatementFormats() []AttestationStatementFormat {
	return []AttestationStatementFormat{
		FormatNone,
		FormatPacked,
	}
}

//SupportedKeyAlgorithms returns the list of key algorithms implemented by the
//library.
func SupportedKeyAlgorithms() []COSEAlgorithmIdentifier {
	return []COSEAlgorithmIdentifier{
		AlgorithmEdDSA,
		AlgorithmES512,
		AlgorithmES384,
		AlgorithmES256,
		AlgorithmPS512,
		AlgorithmPS384,
		AlgorithmPS256,
		AlgorithmRS512,
		AlgorithmRS384,
		AlgorithmRS256,
		AlgorithmRS1,
	}
}

//SupportedPublicKeyCredentialParameters enumerates the credential types and
//algorithms implemented by the library, in preference order.
func SupportedPublicKeyCredentialParameters() []PublicKeyCredentialParameters {
	algs := SupportedKeyAlgorithms()
	params := make([]PublicKeyCredentialParameters, len(algs))
	for i, alg := range algs {
		params[i] = PublicKeyCredentialParameters{
			Type: PublicKey,
			Alg:  alg,
		}
	}
	return params
}
