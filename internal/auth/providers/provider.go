package providers

import (
	"context"

	"github.com/buyukinventory/marketplace/internal/auth"
)

// Provider owns one kind of credential: it registers new identities and
// verifies credentials against the stored ones.
type Provider interface {
	Name() string
	Register(ctx context.Context, email, password string) (auth.Identity, error)
	Authenticate(ctx context.Context, email, password string) (auth.Identity, error)
	Lookup(ctx context.Context, email string) (auth.Identity, bool, error)
}
