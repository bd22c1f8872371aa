package webauthn

import "context"

//CreationOption adjusts the final credential creation options object before
//it is returned.
type CreationOption func(*PublicKeyCredentialCreationOptions)

//RequestOption adjusts the final credential request options object before it
//is returned.
type RequestOption func(*PublicKeyCredentialRequestOptions)

//WithAuthenticatorSelection sets authenticator selection criteria on the
//creation options object
func WithAuthenticatorSelection(criteria AuthenticatorSelectionCriteria) CreationOption {
	return func(co *PublicKeyCredentialCreationOptions) {
		co.AuthenticatorSelection = &criteria
	}
}

//WithAttestation overrides the configured attestation conveyance preference
func WithAttestation(pref AttestationConveyancePreference) CreationOption {
	return func(co *PublicKeyCredentialCreationOptions) {
		co.Attestation = pref
	}
}

//WithCreationTimeout overrides the configured timeout on the creation options
//object
func WithCreationTimeout(millis uint) CreationOption {
	return func(co *PublicKeyCredentialCreationOptions) {
		co.Timeout = millis
	}
}

//WithRequestTimeout overrides the configured timeout on the request options
//object
func WithRequestTimeout(millis uint) RequestOption {
	return func(ro *PublicKeyCredentialRequestOptions) {
		ro.Timeout = millis
	}
}

//BuildCreationOptions starts a registration ceremony: it issues a
//registration challenge bound to the session and user handle, collects the
//user's existing credentials into the exclude list so the same authenticator
//cannot be registered twice, and assembles the options payload for the
//client.
func (s *Service) BuildCreationOptions(ctx context.Context, sessionID string, user PublicKeyCredentialUserEntity, opts ...CreationOption) (*CredentialCreation, error) {
	challenge, err := s.challenges.Issue(ctx, sessionID, KindRegistration, user.ID)
	if err != nil {
		return nil, err
	}

	existing, err := s.credentials.FindAllByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	exclude := make([]PublicKeyCredentialDescriptor, 0, len(existing))
	for i := range existing {
		exclude = append(exclude, existing[i].Descriptor())
	}

	creationOptions := PublicKeyCredentialCreationOptions{
		RP: PublicKeyCredentialRPEntity{
			PublicKeyCredentialEntity: PublicKeyCredentialEntity{
				Name: s.cfg.RPDisplayName,
			},
			ID: s.cfg.RPID,
		},
		User:               user,
		Challenge:          URLEncodedBase64(challenge.Bytes),
		PubKeyCredParams:   SupportedPublicKeyCredentialParameters(),
		Timeout:            s.cfg.timeoutMillis(),
		ExcludeCredentials: exclude,
		AuthenticatorSelection: &AuthenticatorSelectionCriteria{
			UserVerification: s.cfg.UserVerification,
		},
		Attestation: s.cfg.AttestationPreference,
	}

	for _, opt := range opts {
		opt(&creationOptions)
	}

	return &CredentialCreation{PublicKey: creationOptions}, nil
}

//BuildRequestOptions starts an authentication ceremony: it issues an
//authentication challenge bound to the session and assembles the options
//payload for the client. When the user handle is known its credentials
//populate the allow list; when it is nil the allow list is omitted and the
//authenticator chooses, so the response shape does not reveal whether an
//account exists.
func (s *Service) BuildRequestOptions(ctx context.Context, sessionID string, userHandle []byte, opts ...RequestOption) (*CredentialRequest, error) {
	challenge, err := s.challenges.Issue(ctx, sessionID, KindAuthentication, userHandle)
	if err != nil {
		return nil, err
	}

	var allow []PublicKeyCredentialDescriptor
	if len(userHandle) > 0 {
		creds, err := s.credentials.FindAllByUser(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		for i := range creds {
			allow = append(allow, creds[i].Descriptor())
		}
	}

	requestOptions := PublicKeyCredentialRequestOptions{
		Challenge:        URLEncodedBase64(challenge.Bytes),
		Timeout:          s.cfg.timeoutMillis(),
		RPID:             s.cfg.RPID,
		AllowCredentials: allow,
		UserVerification: s.cfg.UserVerification,
	}

	for _, opt := range opts {
		opt(&requestOptions)
	}

	return &CredentialRequest{PublicKey: requestOptions}, nil
}
