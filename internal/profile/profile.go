// Package profile stores User Profile Records, the only source of truth for
// authorization roles.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound    = errors.New("profile record not found")
	ErrInvalidRole = errors.New("profile record has an invalid role")
)

// Record is one users document, keyed by identity id.
type Record struct {
	ID        string    `json:"-"`
	Email     string    `json:"email" validate:"required,email"`
	Name      string    `json:"name" validate:"required,max=200"`
	Role      auth.Role `json:"role" validate:"required,oneof=admin vendor customer"`
	Credits   float64   `json:"credits" validate:"gte=0"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

// document is the stored shape; role stays a raw string until parsed.
type document struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Credits   float64   `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a record before it is written.
func Validate(r Record) error {
	if r.ID == "" {
		return errors.New("profile: record id is required")
	}
	return getValidator().Struct(r)
}

type Store struct {
	docs docstore.Store
	now  func() time.Time
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs, now: time.Now}
}

// Get returns the record for an identity id. A stored role outside the known
// set comes back as auth.RoleNone together with ErrInvalidRole.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	doc, err := s.docs.Get(ctx, docstore.CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return fromDocument(doc)
}

func (s *Store) List(ctx context.Context) ([]Record, error) {
	docs, err := s.docs.Query(ctx, docstore.CollectionUsers)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := fromDocument(doc)
		if err != nil && !errors.Is(err, ErrInvalidRole) {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	docs, err := s.docs.Query(ctx, docstore.CollectionUsers)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Store) Create(ctx context.Context, r Record) (Record, error) {
	r.Email = auth.NormalizeEmail(r.Email)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	if err := s.docs.Set(ctx, docstore.CollectionUsers, r.ID, toDocument(r)); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, role auth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", auth.ErrUnknownRole, role)
	}
	err := s.docs.Update(ctx, docstore.CollectionUsers, id, docstore.Patch{"role": role.String()})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.docs.Delete(ctx, docstore.CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func fromDocument(doc docstore.Document) (Record, error) {
	var d document
	if err := doc.Decode(&d); err != nil {
		return Record{}, fmt.Errorf("profile: decode %s: %w", doc.ID, err)
	}
	rec := Record{
		ID:        doc.ID,
		Email:     d.Email,
		Name:      d.Name,
		Credits:   d.Credits,
		CreatedAt: d.CreatedAt,
		CreatedBy: d.CreatedBy,
	}
	role, err := auth.ParseRole(d.Role)
	if err != nil || role == auth.RoleNone {
		return rec, fmt.Errorf("%w: %q", ErrInvalidRole, d.Role)
	}
	rec.Role = role
	return rec, nil
}

func toDocument(r Record) document {
	return document{
		Email:     r.Email,
		Name:      r.Name,
		Role:      r.Role.String(),
		Credits:   r.Credits,
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
	}
}
