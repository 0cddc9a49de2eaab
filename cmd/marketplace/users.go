package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/config"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const usersCommandTimeout = 15 * time.Second

var errUserNotFound = errors.New("no identity with that email")

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage marketplace identities and their roles.",
}

var (
	bootstrapAdminEmail          string
	bootstrapAdminName           string
	bootstrapAdminPassword       string
	bootstrapAdminPasswordStdin  bool
	bootstrapAdminGeneratePasswd bool

	setRoleEmail string
	setRoleRole  string

	deleteIdentityEmail string
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the first admin user (idempotent if an admin already exists).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := auth.NormalizeEmail(bootstrapAdminEmail)
		if email == "" {
			return usageError("--email is required")
		}

		password, generated, err := resolveBootstrapPassword(cmd)
		if err != nil {
			return err
		}

		return withUserStore(func(ctx context.Context, docs docstore.Store) error {
			created, err := bootstrapAdmin(ctx, docs, email, bootstrapAdminName, password)
			if err != nil {
				return err
			}
			if !created {
				cmd.Println("admin user already exists; nothing to do")
				return nil
			}
			cmd.Printf("created admin user: %s\n", email)
			if generated {
				cmd.Printf("generated password: %s\n", password)
			}
			return nil
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Set the role on a user's profile record.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := auth.ParseRole(setRoleRole)
		if err != nil || role == auth.RoleNone {
			return usageError("--role must be one of admin, vendor, customer")
		}
		email := auth.NormalizeEmail(setRoleEmail)
		return withUserStore(func(ctx context.Context, docs docstore.Store) error {
			if err := setRole(ctx, docs, email, role); err != nil {
				return err
			}
			cmd.Printf("%s is now %s; active sessions pick this up on their next refresh\n", email, role)
			return nil
		})
	},
}

var deleteIdentityCmd = &cobra.Command{
	Use:   "delete-identity",
	Short: "Delete a user's identity and profile record.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := auth.NormalizeEmail(deleteIdentityEmail)
		return withUserStore(func(ctx context.Context, docs docstore.Store) error {
			if err := deleteIdentity(ctx, docs, email); err != nil {
				return err
			}
			cmd.Printf("deleted identity: %s\n", email)
			return nil
		})
	},
}

func withUserStore(fn func(ctx context.Context, docs docstore.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), usersCommandTimeout)
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(ctx, b.docs)
}

// bootstrapAdmin creates an admin identity and profile unless any admin
// profile already exists.
func bootstrapAdmin(ctx context.Context, docs docstore.Store, email, name, password string) (bool, error) {
	profiles := profile.NewStore(docs)
	records, err := profiles.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Role == auth.RoleAdmin {
			return false, nil
		}
	}

	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	provider := identity.NewProvider(docs)
	ident, err := provider.SignUp(ctx, email, password)
	if errors.Is(err, auth.ErrEmailTaken) {
		return false, fmt.Errorf("user already exists: %s", email)
	}
	if err != nil {
		return false, err
	}
	if _, err := profiles.Create(ctx, profile.Record{ID: ident.ID, Email: email, Name: name, Role: auth.RoleAdmin}); err != nil {
		if delErr := provider.DeleteIdentity(ctx, ident.ID); delErr != nil {
			return false, errors.Join(err, delErr)
		}
		return false, err
	}
	return true, nil
}

func setRole(ctx context.Context, docs docstore.Store, email string, role auth.Role) error {
	id, err := identityIDByEmail(ctx, docs, email)
	if err != nil {
		return err
	}
	profiles := profile.NewStore(docs)
	err = profiles.UpdateRole(ctx, id, role)
	if !errors.Is(err, profile.ErrNotFound) {
		return err
	}
	name, _, _ := strings.Cut(email, "@")
	_, err = profiles.Create(ctx, profile.Record{ID: id, Email: email, Name: name, Role: role})
	return err
}

func deleteIdentity(ctx context.Context, docs docstore.Store, email string) error {
	id, err := identityIDByEmail(ctx, docs, email)
	if err != nil {
		return err
	}
	if err := profile.NewStore(docs).Delete(ctx, id); err != nil && !errors.Is(err, profile.ErrNotFound) {
		return err
	}
	return identity.NewProvider(docs).DeleteIdentity(ctx, id)
}

func identityIDByEmail(ctx context.Context, docs docstore.Store, email string) (string, error) {
	if email == "" {
		return "", usageError("--email is required")
	}
	ident, found, err := identity.NewProvider(docs).Lookup(ctx, email)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", errUserNotFound, email)
	}
	return ident.ID, nil
}

func resolveBootstrapPassword(cmd *cobra.Command) (string, bool, error) {
	if bootstrapAdminPasswordStdin && bootstrapAdminGeneratePasswd {
		return "", false, usageError("--password-stdin and --generate-password are mutually exclusive")
	}
	if bootstrapAdminPasswordStdin && bootstrapAdminPassword != "" {
		return "", false, usageError("--password-stdin and --password are mutually exclusive")
	}
	if bootstrapAdminGeneratePasswd && bootstrapAdminPassword != "" {
		return "", false, usageError("--generate-password and --password are mutually exclusive")
	}

	if bootstrapAdminPasswordStdin {
		raw, err := ioReadAllStdin()
		if err != nil {
			return "", false, err
		}
		password := strings.TrimRight(raw, "\r\n")
		if password == "" {
			return "", false, errors.New("password is empty")
		}
		return password, false, nil
	}

	if bootstrapAdminGeneratePasswd {
		password, err := generatePassword(24)
		if err != nil {
			return "", false, err
		}
		return password, true, nil
	}

	if bootstrapAdminPassword != "" {
		return bootstrapAdminPassword, false, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", false, usageError("no password provided (use --password, --password-stdin, or --generate-password)")
	}

	cmd.Print("Password: ")
	pass1, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", false, err
	}
	if len(pass1) == 0 {
		return "", false, errors.New("password is empty")
	}

	cmd.Print("Confirm password: ")
	pass2, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", false, err
	}

	if string(pass1) != string(pass2) {
		return "", false, errors.New("passwords do not match")
	}

	return string(pass1), false, nil
}

func ioReadAllStdin() (string, error) {
	in, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if in.Mode()&os.ModeCharDevice != 0 {
		return "", errors.New("stdin is a terminal; use --password or omit to prompt")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return scanner.Text(), nil
}

func generatePassword(length int) (string, error) {
	if length < auth.MinPasswordLength {
		return "", errors.New("password length too short")
	}
	const alphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const alphabetLen = byte(len(alphabet))
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[b[i]%alphabetLen]
	}
	return string(b), nil
}

func init() {
	usersCmd.AddCommand(bootstrapAdminCmd, setRoleCmd, deleteIdentityCmd)

	bootstrapAdminCmd.Flags().StringVar(&bootstrapAdminEmail, "email", "", "Email address for the admin user")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapAdminName, "name", "", "Display name (defaults to the email local part)")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapAdminPassword, "password", "", "Password for the admin user (discouraged; prefer --password-stdin)")
	bootstrapAdminCmd.Flags().BoolVar(&bootstrapAdminPasswordStdin, "password-stdin", false, "Read the password from stdin")
	bootstrapAdminCmd.Flags().BoolVar(&bootstrapAdminGeneratePasswd, "generate-password", false, "Generate a random password and print it")
	_ = bootstrapAdminCmd.MarkFlagRequired("email")

	setRoleCmd.Flags().StringVar(&setRoleEmail, "email", "", "Email address of the user")
	setRoleCmd.Flags().StringVar(&setRoleRole, "role", "", "New role: admin, vendor or customer")
	_ = setRoleCmd.MarkFlagRequired("email")
	_ = setRoleCmd.MarkFlagRequired("role")

	deleteIdentityCmd.Flags().StringVar(&deleteIdentityEmail, "email", "", "Email address of the user")
	_ = deleteIdentityCmd.MarkFlagRequired("email")
}
