//Command demo runs a minimal relying party server backed by the in-memory
//stores, for exercising the ceremony endpoints against a browser or a
//virtual authenticator.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/keyceremony/webauthn"
	"github.com/keyceremony/webauthn/httpapi"
)

var (
	bind   string
	origin string
)

func init() {
	flag.StringVar(&bind, "bind", "localhost:8080", "address to listen on")
	flag.StringVar(&origin, "origin", "http://localhost:8080", "relying party origin")
}

//demoIdentity treats every request as the same logged-in user and resolves
//only that user's name.
type demoIdentity struct {
	user webauthn.PublicKeyCredentialUserEntity
}

func (d *demoIdentity) CurrentUser(_ *http.Request) (webauthn.PublicKeyCredentialUserEntity, error) {
	return d.user, nil
}

func (d *demoIdentity) ResolveUsername(_ context.Context, username string) ([]byte, error) {
	if username != d.user.Name {
		return nil, httpapi.ErrUnknownUser
	}
	return d.user.ID, nil
}

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	u, err := url.Parse(origin)
	if err != nil {
		logger.Error("invalid origin", "origin", origin, "error", err)
		os.Exit(1)
	}

	cfg := &webauthn.Config{
		RPID:          u.Hostname(),
		RPDisplayName: "keyceremony demo",
		RPOrigins:     []string{origin},
	}

	svc, err := webauthn.NewService(
		cfg,
		webauthn.NewMemoryChallengeStore(cfg),
		webauthn.NewMemoryCredentialRepository(),
	)
	if err != nil {
		logger.Error("building service", "error", err)
		os.Exit(1)
	}

	identity := &demoIdentity{
		user: webauthn.PublicKeyCredentialUserEntity{
			PublicKeyCredentialEntity: webauthn.PublicKeyCredentialEntity{
				Name: "demo",
			},
			ID:          webauthn.URLEncodedBase64("demo-user-handle"),
			DisplayName: "Demo User",
		},
	}

	mux := http.NewServeMux()
	httpapi.Mount(mux, "/account/webauthn", httpapi.NewHandler(svc, identity, logger))

	logger.Info("listening", "bind", bind, "origin", origin)
	if err := http.ListenAndServe(bind, mux); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
