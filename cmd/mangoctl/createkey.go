package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/mangosense/mangosense-api/internal/api/middleware"
	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/internal/store"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix marks every raw key issued by mangoctl.
const KeyPrefix = "ms_"

type keyStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

type keyOptions struct {
	UserID   int64
	Username string
	Staff    bool
	Name     string
	Scopes   []string
	Cost     int
}

func createKeyCommand() *cobra.Command {
	opts := keyOptions{Cost: bcrypt.DefaultCost}

	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Issue an API key, creating the owning user when needed",
		Long: "Issues an API key for --user-id, or creates a user named --username first.\n" +
			"The raw key is printed once and cannot be recovered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			raw, key, err := createKey(cmd.Context(), store.NewPostgresStore(pool), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key id:  %s\n", key.ID)
			fmt.Fprintf(out, "user id: %d\n", key.UserID)
			fmt.Fprintf(out, "scopes:  %s\n", strings.Join(key.Scopes, ","))
			fmt.Fprintf(out, "api key: %s\n", raw)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "Existing user to own the key")
	cmd.Flags().StringVar(&opts.Username, "username", "", "Create a new user with this name to own the key")
	cmd.Flags().BoolVar(&opts.Staff, "staff", false, "Mark the new user as staff")
	cmd.Flags().StringVar(&opts.Name, "name", "default", "Label for the key")
	cmd.Flags().StringSliceVar(&opts.Scopes, "scopes", []string{models.ScopeRead}, "Scopes granted to the key (read, admin)")
	cmd.MarkFlagsMutuallyExclusive("user-id", "username")
	cmd.MarkFlagsOneRequired("user-id", "username")

	return cmd
}

// createKey resolves or creates the owner, then stores the bcrypt hash of a
// fresh random key. The raw key is returned only here.
func createKey(ctx context.Context, st keyStore, opts keyOptions) (string, *models.APIKey, error) {
	for _, s := range opts.Scopes {
		if s != models.ScopeRead && s != models.ScopeAdmin {
			return "", nil, fmt.Errorf("unknown scope %q", s)
		}
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{models.ScopeRead}
	}

	userID, err := resolveOwner(ctx, st, opts)
	if err != nil {
		return "", nil, err
	}

	raw, err := generateKey()
	if err != nil {
		return "", nil, err
	}
	cost := opts.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      opts.Name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:mw.KeyPrefixLen],
		Scopes:    opts.Scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("store key: %w", err)
	}
	return raw, key, nil
}

func resolveOwner(ctx context.Context, st keyStore, opts keyOptions) (int64, error) {
	if opts.UserID != 0 {
		u, err := st.GetUser(ctx, opts.UserID)
		if err != nil {
			return 0, fmt.Errorf("user %d: %w", opts.UserID, err)
		}
		return u.ID, nil
	}
	if strings.TrimSpace(opts.Username) == "" {
		return 0, fmt.Errorf("either --user-id or --username is required")
	}
	u := &models.User{Username: strings.TrimSpace(opts.Username), IsStaff: opts.Staff, IsActive: true}
	if err := st.CreateUser(ctx, u); err != nil {
		return 0, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return u.ID, nil
}

func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}
