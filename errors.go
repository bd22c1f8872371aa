package webauthn

import (
	"errors"
	"fmt"
)

//Error represents an error in a WebAuthn relying party operation
type Error struct {
	Msg     string
	Wrapped error
}

//Error implements the error interface
func (e Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Wrapped.Error())
	}
	return e.Msg
}

//Unwrap allows for error unwrapping
func (e Error) Unwrap() error {
	return e.Wrapped
}

//Is matches on the error message so that wrapped copies of the sentinel
//errors below still satisfy errors.Is
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Msg == t.Msg
	}
	return false
}

//Wrap returns a new error which contains the provided error wrapped with this
//error
func (e Error) Wrap(err error) Error {
	n := e
	n.Wrapped = err
	return n
}

//NewError returns a new Error with a formatted message
func NewError(fmStr string, els ...interface{}) Error {
	return Error{
		Msg: fmt.Sprintf(fmStr, els...),
	}
}

//Sentinel errors for the failure classes a ceremony can end in. Validator
//failures wrap one of these so callers can branch with errors.Is while the
//user-visible surface stays generic.
var (
	ErrMalformedInput             = Error{Msg: "malformed input"}
	ErrMalformedAuthenticatorData = Error{Msg: "malformed authenticator data"}
	ErrChallengeNotFound          = Error{Msg: "challenge not found"}
	ErrChallengeMismatch          = Error{Msg: "challenge mismatch"}
	ErrChallengeExpired           = Error{Msg: "challenge expired"}
	ErrUnknownCredential          = Error{Msg: "unknown credential"}
	ErrDuplicateCredential        = Error{Msg: "duplicate credential"}
	ErrSignatureVerification      = Error{Msg: "signature verification failed"}
	ErrPossibleCloneDetected      = Error{Msg: "possible cloned authenticator detected"}
	ErrStaleOrDecreasingCounter   = Error{Msg: "stale or decreasing sign counter"}
	ErrOriginMismatch             = Error{Msg: "origin mismatch"}
	ErrRelyingPartyMismatch       = Error{Msg: "relying party mismatch"}
)

//Operation-level errors wrapping the sentinel that caused them
var (
	ErrGenerateChallenge    = Error{Msg: "error generating challenge"}
	ErrDecodeCOSEKey        = Error{Msg: "error decoding COSE key"}
	ErrVerifyAttestation    = Error{Msg: "error verifying attestation"}
	ErrVerifyRegistration   = Error{Msg: "error verifying registration"}
	ErrVerifyAuthentication = Error{Msg: "error verifying authentication"}
)

//IsUnknownCredential reports whether err indicates a credential lookup miss
func IsUnknownCredential(err error) bool {
	return errors.Is(err, ErrUnknownCredential)
}

//IsChallengeFailure reports whether err indicates the ceremony was not bound
//to a live, server-issued challenge
func IsChallengeFailure(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrChallengeMismatch) ||
		errors.Is(err, ErrChallengeExpired)
}
