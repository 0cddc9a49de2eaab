package providers

import (
	"context"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/docstore"
)

// IdentityRecord is the stored shape of an identities document.
type IdentityRecord struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Disabled     bool   `json:"disabled"`
}

type PasswordProvider struct {
	Docs docstore.Store
}

func NewPasswordProvider(docs docstore.Store) *PasswordProvider {
	return &PasswordProvider{Docs: docs}
}

func (p *PasswordProvider) Name() string {
	return auth.MethodPassword
}

// Register stores a new identity with an argon2id password hash.
func (p *PasswordProvider) Register(ctx context.Context, email, password string) (auth.Identity, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	if _, found, err := p.Lookup(ctx, email); err != nil {
		return auth.Identity{}, err
	} else if found {
		return auth.Identity{}, auth.ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.Identity{}, err
	}
	id, err := p.Docs.Add(ctx, docstore.CollectionIdentities, IdentityRecord{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: id, Email: email}, nil
}

// Lookup finds the identity registered for email.
func (p *PasswordProvider) Lookup(ctx context.Context, email string) (auth.Identity, bool, error) {
	_, ident, found, err := p.find(ctx, email)
	return ident, found, err
}

func (p *PasswordProvider) find(ctx context.Context, email string) (IdentityRecord, auth.Identity, bool, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return IdentityRecord{}, auth.Identity{}, false, nil
	}
	docs, err := p.Docs.Query(ctx, docstore.CollectionIdentities, docstore.Eq("email", email))
	if err != nil {
		return IdentityRecord{}, auth.Identity{}, false, err
	}
	if len(docs) == 0 {
		return IdentityRecord{}, auth.Identity{}, false, nil
	}
	var rec IdentityRecord
	if err := docs[0].Decode(&rec); err != nil {
		return IdentityRecord{}, auth.Identity{}, false, err
	}
	return rec, auth.Identity{ID: docs[0].ID, Email: rec.Email}, true, nil
}

func (p *PasswordProvider) Authenticate(ctx context.Context, email, password string) (auth.Identity, error) {
	if auth.NormalizeEmail(email) == "" || password == "" {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}

	rec, ident, found, err := p.find(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	if !found || rec.Disabled {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, rec.PasswordHash)
	if err != nil {
		return auth.Identity{}, err
	}
	if !match {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}

	return ident, nil
}

var _ Provider = (*PasswordProvider)(nil)
