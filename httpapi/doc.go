//Package httpapi provides composable HTTP handlers for the WebAuthn
//ceremony and credential management operations.
//
//Create a handler from a webauthn.Service and an Identity implementation and
//mount it on a mux:
//
//	svc, _ := webauthn.NewService(cfg, challenges, credentials)
//	handler := httpapi.NewHandler(svc, identity, logger)
//	httpapi.Mount(mux, "/account/webauthn", handler)
//
//Endpoints:
//
//	POST   /registration/begin   start the registration ceremony
//	POST   /registration/finish  verify the attestation and store the credential
//	POST   /login/begin          start the authentication ceremony
//	POST   /login/finish         verify the assertion
//	GET    /credentials          list the current user's credentials
//	DELETE /credentials/{id}     delete one credential (base64url id)
//	DELETE /credentials          delete all of the current user's credentials
//
//Begin operations return an X-Session-Id header which must be echoed back on
//the matching finish operation; it keys the single outstanding challenge per
//ceremony kind.
//
//Every ceremony failure is reported to the client as the same generic
//authentication_failed error regardless of cause, so the response shape does
//not reveal whether an account or credential exists. The distinct cause is
//retained in the structured log.
package httpapi
