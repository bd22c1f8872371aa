package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keyceremony/webauthn"
)

//Handler serves the ceremony and credential management endpoints.
type Handler struct {
	svc      *webauthn.Service
	identity Identity
	logger   *slog.Logger
}

//NewHandler creates a Handler. A nil logger defaults to slog.Default().
func NewHandler(svc *webauthn.Service, identity Identity, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		identity: identity,
		logger:   logger,
	}
}

//sessionID returns the ceremony session identifier from the request,
//generating a fresh one when the client has none yet
func sessionID(r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("writing response", "error", err)
	}
}

//writeCeremonyFailure collapses every ceremony failure into the same generic
//reply; the distinct cause stays in the log only
func (h *Handler) writeCeremonyFailure(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("ceremony failed", "op", op, "error", err)
	h.writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   "authentication_failed",
		Message: "authentication failed",
	})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("bad request", "op", op, "error", err)
	h.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "bad_request",
		Message: "could not parse request",
	})
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (webauthn.PublicKeyCredentialUserEntity, bool) {
	user, err := h.identity.CurrentUser(r)
	if err != nil {
		h.logger.Warn("access denied", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   "not_authenticated",
			Message: "login required",
		})
		return webauthn.PublicKeyCredentialUserEntity{}, false
	}
	return user, true
}

//RegistrationBegin issues creation options for the logged-in user.
func (h *Handler) RegistrationBegin(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	session := sessionID(r)
	options, err := h.svc.BuildCreationOptions(r.Context(), session, user)
	if err != nil {
		h.writeCeremonyFailure(w, "registration.begin", err)
		return
	}

	w.Header().Set(sessionHeader, session)
	h.writeJSON(w, http.StatusOK, options)
}

//RegistrationFinish verifies the attestation response and stores the new
//credential under the client-chosen name.
func (h *Handler) RegistrationFinish(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	var req finishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "registration.finish", err)
		return
	}

	session := r.Header.Get(sessionHeader)
	named, err := h.svc.FinishRegistration(r.Context(), session, req.Name, &req.AttestationPublicKeyCredential)
	if err != nil {
		h.writeCeremonyFailure(w, "registration.finish", err)
		return
	}

	h.logger.Info("credential registered",
		"credential", webauthn.Encode(named.CredentialID),
		"name", named.Name,
	)
	h.writeJSON(w, http.StatusCreated, summarize(*named))
}

//LoginBegin issues request options. An unknown username produces the same
//response shape as a known one, without an allow list.
func (h *Handler) LoginBegin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "login.begin", err)
		return
	}

	var userHandle []byte
	if req.Username != "" {
		handle, err := h.identity.ResolveUsername(r.Context(), req.Username)
		switch {
		case errors.Is(err, ErrUnknownUser):
			//deliberately indistinguishable from a known user with no
			//credentials
		case err != nil:
			h.writeCeremonyFailure(w, "login.begin", err)
			return
		default:
			userHandle = handle
		}
	}

	session := sessionID(r)
	options, err := h.svc.BuildRequestOptions(r.Context(), session, userHandle)
	if err != nil {
		h.writeCeremonyFailure(w, "login.begin", err)
		return
	}

	w.Header().Set(sessionHeader, session)
	h.writeJSON(w, http.StatusOK, options)
}

//LoginFinish verifies the assertion response and reports the authenticated
//user handle.
func (h *Handler) LoginFinish(w http.ResponseWriter, r *http.Request) {
	var cred webauthn.AssertionPublicKeyCredential
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		h.writeBadRequest(w, "login.finish", err)
		return
	}

	session := r.Header.Get(sessionHeader)
	source, err := h.svc.FinishAuthentication(r.Context(), session, &cred)
	if err != nil {
		h.writeCeremonyFailure(w, "login.finish", err)
		return
	}

	h.logger.Info("authentication succeeded",
		"credential", webauthn.Encode(source.CredentialID),
	)
	h.writeJSON(w, http.StatusOK, finishLoginResponse{
		UserHandle: webauthn.URLEncodedBase64(source.UserHandle),
	})
}

//CredentialList lists the logged-in user's registered credentials.
func (h *Handler) CredentialList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	creds, err := h.svc.Credentials(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("listing credentials", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: "could not list credentials",
		})
		return
	}

	summaries := make([]credentialSummary, 0, len(creds))
	for _, cred := range creds {
		summaries = append(summaries, summarize(cred))
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

//CredentialDelete deletes one credential owned by the logged-in user. A
//missing or non-owned credential is a silent no-op, so the endpoint cannot
//be used to probe other accounts' credential IDs.
func (h *Handler) CredentialDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	credentialID, err := webauthn.Decode(r.PathValue("id"))
	if err != nil {
		h.writeBadRequest(w, "credential.delete", err)
		return
	}

	deleted, err := h.svc.DeleteCredential(r.Context(), user.ID, credentialID)
	if err != nil {
		h.logger.Error("deleting credential", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: "could not delete credential",
		})
		return
	}
	if !deleted {
		h.logger.Warn("credential delete was a no-op",
			"credential", webauthn.Encode(credentialID),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

//CredentialDeleteAll deletes every credential owned by the logged-in user.
func (h *Handler) CredentialDeleteAll(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteAllCredentials(r.Context(), user.ID); err != nil {
		h.logger.Error("deleting credentials", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: "could not delete credentials",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func summarize(cred webauthn.NamedCredential) credentialSummary {
	summary := credentialSummary{
		ID:        webauthn.URLEncodedBase64(cred.CredentialID),
		Name:      cred.Name,
		CreatedAt: cred.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(cred.AAGUID) == 16 {
		id, err := uuid.FromBytes(cred.AAGUID)
		if err == nil && id != uuid.Nil {
			summary.AAGUID = id.String()
		}
	}
	return summary
}
