// Package auth handles learner sign-in through WorkOS AuthKit and issues
// the gateway's own bearer session tokens.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

// Identity is the authenticated learner.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// Service drives the AuthKit hosted login flow.
type Service struct {
	client      *usermanagement.Client
	clientID    string
	redirectURI string
}

// NewService creates a Service for the given WorkOS credentials.
func NewService(apiKey, clientID, redirectURI string) (*Service, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("workos api key is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("workos client id is required")
	}
	return &Service{
		client:      usermanagement.NewClient(apiKey),
		clientID:    clientID,
		redirectURI: redirectURI,
	}, nil
}

// LoginURL returns the hosted AuthKit URL the browser is redirected to.
// state is echoed back on the callback for CSRF protection.
func (s *Service) LoginURL(state string) (string, error) {
	u, err := s.client.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    s.clientID,
		RedirectURI: s.redirectURI,
		Provider:    "authkit",
		State:       state,
	})
	if err != nil {
		return "", fmt.Errorf("build authorization url: %w", err)
	}
	return u.String(), nil
}

// ExchangeCode trades the callback code for the learner's identity.
func (s *Service) ExchangeCode(ctx context.Context, code string) (Identity, error) {
	resp, err := s.client.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: s.clientID,
		Code:     code,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("authenticate with code: %w", err)
	}
	name := strings.TrimSpace(resp.User.FirstName + " " + resp.User.LastName)
	return Identity{
		UserID:      resp.User.ID,
		Email:       resp.User.Email,
		DisplayName: name,
	}, nil
}
