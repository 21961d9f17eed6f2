package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrNoAuthenticator is returned by Login when no authenticator is set.
var ErrNoAuthenticator = errors.New("no authenticator configured")

// Authenticator exchanges a user id for a credential.
type Authenticator interface {
	Login(ctx context.Context, usrID string) (domain.Credential, error)
}

// SetAuthenticator sets the backend used by Login (called from main.go).
func (m *Module) SetAuthenticator(auth Authenticator) {
	m.auth = auth
}

// Login signs in as usrID and stores the resulting credential.
func (m *Module) Login(ctx context.Context, usrID string) (domain.Credential, error) {
	if usrID == "" {
		return domain.Credential{}, fmt.Errorf("usr_id is required")
	}
	if m.auth == nil {
		return domain.Credential{}, ErrNoAuthenticator
	}
	cred, err := m.auth.Login(ctx, usrID)
	if err != nil {
		return domain.Credential{}, err
	}
	if err := m.service.Set(cred); err != nil {
		return domain.Credential{}, err
	}
	m.logger.Info("Signed in", "member_id", cred.MemberID)
	return cred, nil
}

// Logout clears the credential. Listeners close the realtime channels and
// drop loaded state.
func (m *Module) Logout() error {
	if err := m.service.Clear(); err != nil {
		return err
	}
	m.logger.Info("Signed out")
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.login,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "logout", json.Unmarshal, json.Marshal, m.logout,
	); err != nil {
		return fmt.Errorf("failed to register logout service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "whoami", json.Unmarshal, json.Marshal, m.whoami,
	); err != nil {
		return fmt.Errorf("failed to register whoami service: %w", err)
	}

	m.logger.Info("Registered services", "services", "services.credentials.{login,logout,whoami}")
	return nil
}

func (m *Module) login(ctx context.Context, req LoginRequest, _ *mono.Msg) (IdentityResponse, error) {
	if _, err := m.Login(ctx, req.UsrID); err != nil {
		return IdentityResponse{}, err
	}
	return m.identity(), nil
}

func (m *Module) logout(_ context.Context, _ LogoutRequest, _ *mono.Msg) (IdentityResponse, error) {
	if err := m.Logout(); err != nil {
		return IdentityResponse{}, err
	}
	return m.identity(), nil
}

func (m *Module) whoami(_ context.Context, _ WhoAmIRequest, _ *mono.Msg) (IdentityResponse, error) {
	return m.identity(), nil
}

func (m *Module) identity() IdentityResponse {
	_, ok := m.service.Get()
	self := m.service.Identity()
	return IdentityResponse{
		Authenticated: ok,
		MemberID:      self.MemberID,
		Name:          self.Name,
	}
}
