package httpapi

import "net/http"

//Mount registers the handler's routes on a stdlib ServeMux under the given
//prefix. The prefix must not end with a slash.
func Mount(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc("POST "+prefix+"/registration/begin", h.RegistrationBegin)
	mux.HandleFunc("POST "+prefix+"/registration/finish", h.RegistrationFinish)
	mux.HandleFunc("POST "+prefix+"/login/begin", h.LoginBegin)
	mux.HandleFunc("POST "+prefix+"/login/finish", h.LoginFinish)
	mux.HandleFunc("GET "+prefix+"/credentials", h.CredentialList)
	mux.HandleFunc("DELETE "+prefix+"/credentials/{id}", h.CredentialDelete)
	mux.HandleFunc("DELETE "+prefix+"/credentials", h.CredentialDeleteAll)
}
