package webauthn

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

//PublicKeyCredentialSource is the server-side record of a registered
//credential. CredentialID is globally unique; SignCount is the only field
//that changes after registration.
type PublicKeyCredentialSource struct {
	CredentialID []byte                   `json:"credentialId"`
	PublicKey    []byte                   `json:"publicKey"`
	SignCount    uint32                   `json:"signCount"`
	UserHandle   []byte                   `json:"userHandle"`
	Transports   []AuthenticatorTransport `json:"transports,omitempty"`
	AAGUID       []byte                   `json:"aaguid,omitempty"`
}

//OwnedBy reports whether the credential belongs to the given user handle
func (s *PublicKeyCredentialSource) OwnedBy(userHandle []byte) bool {
	return bytes.Equal(s.UserHandle, userHandle)
}

//NamedCredential is a credential source plus a human-readable label and
//creation timestamp, for display purposes only.
type NamedCredential struct {
	PublicKeyCredentialSource
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

//Descriptor returns the wire descriptor referring to this credential, used
//for exclude and allow lists
func (c *NamedCredential) Descriptor() PublicKeyCredentialDescriptor {
	return PublicKeyCredentialDescriptor{
		Type:       PublicKey,
		ID:         URLEncodedBase64(c.CredentialID),
		Transports: c.Transports,
	}
}

//CredentialRepository persists public key credential records keyed by
//credential ID and by owning user. Credential ID uniqueness and ownership
//are enforced here, before any mutation is applied, not by the backing
//store.
type CredentialRepository interface {
	//FindByCredentialID returns the credential with the given ID, or
	//ErrUnknownCredential if absent.
	FindByCredentialID(ctx context.Context, credentialID []byte) (*NamedCredential, error)

	//FindAllByUser returns every credential owned by the given user handle,
	//oldest first.
	FindAllByUser(ctx context.Context, userHandle []byte) ([]NamedCredential, error)

	//Save stores a new credential. It fails with ErrDuplicateCredential if
	//the credential ID is already registered to a different user; saving
	//again for the same user replaces the record's display fields.
	Save(ctx context.Context, cred *NamedCredential) error

	//UpdateSignCount applies a new signature counter value. It fails with
	//ErrStaleOrDecreasingCounter unless newCount is strictly greater than
	//the stored value at write time, so two racing authentications cannot
	//both win.
	UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32) error

	//DeleteByID removes a credential. It returns false without error when
	//no such credential exists, so the caller can tell a no-op from a
	//deletion.
	DeleteByID(ctx context.Context, credentialID []byte) (bool, error)

	//DeleteAllByUser removes every credential owned by the given user
	//handle.
	DeleteAllByUser(ctx context.Context, userHandle []byte) error
}

//MemoryCredentialRepository is an in-memory CredentialRepository. Suitable
//for development and testing.
type MemoryCredentialRepository struct {
	mu   sync.RWMutex
	byID map[string]*NamedCredential
}

//NewMemoryCredentialRepository creates an empty in-memory credential
//repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		byID: make(map[string]*NamedCredential),
	}
}

//FindByCredentialID implements CredentialRepository
func (r *MemoryCredentialRepository) FindByCredentialID(ctx context.Context, credentialID []byte) (*NamedCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byID[Encode(credentialID)]
	if !ok {
		return nil, ErrUnknownCredential
	}
	c := *cred
	return &c, nil
}

//FindAllByUser implements CredentialRepository
func (r *MemoryCredentialRepository) FindAllByUser(ctx context.Context, userHandle []byte) ([]NamedCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var creds []NamedCredential
	for _, cred := range r.byID {
		if cred.OwnedBy(userHandle) {
			creds = append(creds, *cred)
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

//Save implements CredentialRepository
func (r *MemoryCredentialRepository) Save(ctx context.Context, cred *NamedCredential) error {
	if len(cred.CredentialID) == 0 {
		return NewError("empty credential ID")
	}
	if len(cred.UserHandle) == 0 {
		return NewError("empty user handle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Encode(cred.CredentialID)
	if existing, ok := r.byID[key]; ok && !existing.OwnedBy(cred.UserHandle) {
		return ErrDuplicateCredential
	}

	c := *cred
	r.byID[key] = &c
	return nil
}

//UpdateSignCount implements CredentialRepository. The check against the
//stored value happens under the write lock, making the update a
//compare-and-swap rather than a blind overwrite.
func (r *MemoryCredentialRepository) UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[Encode(credentialID)]
	if !ok {
		return ErrUnknownCredential
	}
	if newCount <= cred.SignCount {
		return ErrStaleOrDecreasingCounter
	}
	cred.SignCount = newCount
	return nil
}

//DeleteByID implements CredentialRepository
func (r *MemoryCredentialRepository) DeleteByID(ctx context.Context, credentialID []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Encode(credentialID)
	if _, ok := r.byID[key]; !ok {
		return false, nil
	}
	delete(r.byID, key)
	return true, nil
}

//DeleteAllByUser implements CredentialRepository
func (r *MemoryCredentialRepository) DeleteAllByUser(ctx context.Context, userHandle []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, cred := range r.byID {
		if cred.OwnedBy(userHandle) {
			delete(r.byID, key)
		}
	}
	return nil
}
