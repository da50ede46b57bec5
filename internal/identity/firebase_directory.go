// Package identity adapts Firebase Auth to the user directory and claims store
// used by the ledger services.
package identity

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/models"
)

// authClient is the subset of *auth.Client used here.
type authClient interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// FirebaseDirectory resolves users by email and writes custom claims.
type FirebaseDirectory struct {
	client authClient
	logger *zap.Logger
}

// NewFirebaseDirectory wraps a Firebase Auth client.
func NewFirebaseDirectory(client *auth.Client, logger *zap.Logger) (*FirebaseDirectory, error) {
	if client == nil {
		return nil, errors.New("firebase auth client is not initialized for FirebaseDirectory")
	}
	return &FirebaseDirectory{client: client, logger: logger}, nil
}

// LookupOrCreateByEmail returns the UID registered for email. When no user exists
// one is created with the email marked verified, since the buyer proved ownership
// by paying.
func (d *FirebaseDirectory) LookupOrCreateByEmail(ctx context.Context, email, displayName string) (string, bool, error) {
	user, err := d.client.GetUserByEmail(ctx, email)
	if err == nil {
		return user.UID, false, nil
	}
	if !auth.IsUserNotFound(err) {
		return "", false, fmt.Errorf("failed to look up user by email: %w", err)
	}

	params := (&auth.UserToCreate{}).Email(email).EmailVerified(true)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	user, err = d.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			// Lost a race with another delivery creating the same user.
			existing, getErr := d.client.GetUserByEmail(ctx, email)
			if getErr != nil {
				return "", false, fmt.Errorf("failed to look up user after create conflict: %w", getErr)
			}
			return existing.UID, false, nil
		}
		return "", false, fmt.Errorf("failed to create user: %w", err)
	}
	d.logger.Info("Created identity for purchaser", zap.String("user_id", user.UID))
	return user.UID, true, nil
}

// PasswordResetLink generates a link the purchaser can use to set a password.
func (d *FirebaseDirectory) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := d.client.PasswordResetLink(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to generate password reset link: %w", err)
	}
	return link, nil
}

// SetClaims replaces the custom claims on the user's tokens.
func (d *FirebaseDirectory) SetClaims(ctx context.Context, userID string, claims models.Claims) error {
	if err := d.client.SetCustomUserClaims(ctx, userID, claims.AsMap()); err != nil {
		return fmt.Errorf("failed to set custom claims for %s: %w", userID, err)
	}
	return nil
}
