package webauthn

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"
)

//CeremonyKind distinguishes the two ceremony types a challenge can be issued
//for.
type CeremonyKind string

//enum values for CeremonyKind type
const (
	KindRegistration   CeremonyKind = "registration"
	KindAuthentication CeremonyKind = "authentication"
)

//CeremonyChallenge is a single-use random challenge bound to a session and a
//ceremony kind. UserHandle is the account the challenge was issued for during
//registration, or an optional hint during authentication.
type CeremonyChallenge struct {
	Bytes      []byte
	Kind       CeremonyKind
	RPID       string
	UserHandle []byte
	IssuedAt   time.Time
}

//ChallengeStore issues and single-use-validates session-bound challenges. At
//most one un-consumed challenge of a given kind exists per session; issuing a
//new one supersedes the previous.
type ChallengeStore interface {
	//Issue generates a fresh random challenge for (sessionID, kind),
	//replacing any outstanding challenge of the same kind.
	Issue(ctx context.Context, sessionID string, kind CeremonyKind, userHandle []byte) (*CeremonyChallenge, error)

	//Consume looks up the outstanding challenge for (sessionID, kind),
	//compares it byte-for-byte against presented, and deletes it regardless
	//of the outcome. The lookup-and-delete is atomic: of two racing Consume
	//calls for the same key, exactly one can succeed. Fails with
	//ErrChallengeNotFound, ErrChallengeMismatch, or ErrChallengeExpired.
	Consume(ctx context.Context, sessionID string, kind CeremonyKind, presented []byte) (*CeremonyChallenge, error)
}

//randReader is swapped out in tests
var randReader io.Reader = rand.Reader

//generateChallenge produces length cryptographically random bytes
func generateChallenge(length int) ([]byte, error) {
	challenge := make([]byte, length)
	n, err := io.ReadFull(randReader, challenge)
	if err != nil {
		return nil, ErrGenerateChallenge.Wrap(err)
	}
	if n < length {
		return nil, ErrGenerateChallenge.Wrap(NewError("read %d random bytes, needed %d", n, length))
	}
	return challenge, nil
}

//MemoryChallengeStore is an in-memory ChallengeStore keyed by session and
//ceremony kind. Suitable for single-process deployments, development, and
//testing; a multi-process deployment needs a store whose Consume is atomic
//across processes.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[challengeKey]*CeremonyChallenge

	rpID   string
	length int
	maxAge time.Duration

	now func() time.Time
}

type challengeKey struct {
	sessionID string
	kind      CeremonyKind
}

//NewMemoryChallengeStore creates an in-memory challenge store issuing
//challenges for the configured relying party, with the configured length and
//maximum age.
func NewMemoryChallengeStore(cfg *Config) *MemoryChallengeStore {
	cfg.SetDefaults()
	return &MemoryChallengeStore{
		challenges: make(map[challengeKey]*CeremonyChallenge),
		rpID:       cfg.RPID,
		length:     cfg.ChallengeLength,
		maxAge:     cfg.ChallengeMaxAge,
		now:        time.Now,
	}
}

//Issue implements ChallengeStore
func (s *MemoryChallengeStore) Issue(ctx context.Context, sessionID string, kind CeremonyKind, userHandle []byte) (*CeremonyChallenge, error) {
	if sessionID == "" {
		return nil, NewError("empty session ID")
	}

	raw, err := generateChallenge(s.length)
	if err != nil {
		return nil, err
	}

	challenge := &CeremonyChallenge{
		Bytes:      raw,
		Kind:       kind,
		RPID:       s.rpID,
		UserHandle: append([]byte{}, userHandle...),
		IssuedAt:   s.now(),
	}

	s.mu.Lock()
	s.challenges[challengeKey{sessionID, kind}] = challenge
	s.mu.Unlock()

	return challenge, nil
}

//Consume implements ChallengeStore. The store lock spans lookup, comparison,
//and deletion, so racing calls serialize and the loser observes
//ErrChallengeNotFound.
func (s *MemoryChallengeStore) Consume(ctx context.Context, sessionID string, kind CeremonyKind, presented []byte) (*CeremonyChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{sessionID, kind}
	challenge, ok := s.challenges[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.challenges, key)

	if s.maxAge > 0 && s.now().Sub(challenge.IssuedAt) > s.maxAge {
		return nil, ErrChallengeExpired
	}
	if !bytes.Equal(challenge.Bytes, presented) {
		return nil, ErrChallengeMismatch
	}

	return challenge, nil
}
