package credentials

import (
	"context"
	"errors"
	"testing"

	domain "github.com/example/chat-sync-client/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

var errUnknownUser = errors.New("unknown user")

// fakeAuthenticator signs in known user ids with a token carrying their name.
type fakeAuthenticator struct {
	users map[string]domain.Credential
}

func (f *fakeAuthenticator) Login(_ context.Context, usrID string) (domain.Credential, error) {
	cred, ok := f.users[usrID]
	if !ok {
		return domain.Credential{}, errUnknownUser
	}
	return cred, nil
}

func TestServices_LoginLogout(t *testing.T) {
	m := NewModule(Config{Profile: "test"}, &mockLogger{})
	m.SetAuthenticator(&fakeAuthenticator{users: map[string]domain.Credential{
		"1001": {Token: signedToken(t, "alice"), MemberID: "m-alice"},
	}})

	var changes []bool
	cancel := m.Service().Subscribe(func(cred domain.Credential) {
		changes = append(changes, cred.Complete())
	})
	defer cancel()

	ctx := context.Background()
	resp, err := m.whoami(ctx, WhoAmIRequest{}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Authenticated)

	resp, err = m.login(ctx, LoginRequest{UsrID: "1001"}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "m-alice", resp.MemberID)
	assert.Equal(t, "alice", resp.Name)

	resp, err = m.logout(ctx, LogoutRequest{}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Authenticated)
	_, ok := m.Service().Get()
	assert.False(t, ok)

	assert.Equal(t, []bool{true, false}, changes)
}

func TestServices_LoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		auth    Authenticator
		usrID   string
		wantErr error
	}{
		{name: "no authenticator", auth: nil, usrID: "1001", wantErr: ErrNoAuthenticator},
		{name: "unknown user", auth: &fakeAuthenticator{}, usrID: "9999", wantErr: errUnknownUser},
		{
			name:    "incomplete credential",
			auth:    &fakeAuthenticator{users: map[string]domain.Credential{"1001": {Token: "t"}}},
			usrID:   "1001",
			wantErr: ErrIncompleteCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule(Config{}, &mockLogger{})
			if tt.auth != nil {
				m.SetAuthenticator(tt.auth)
			}
			_, err := m.login(context.Background(), LoginRequest{UsrID: tt.usrID}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("login() error = %v, want %v", err, tt.wantErr)
			}
			if _, ok := m.Service().Get(); ok {
				t.Errorf("Get() authenticated after failed login")
			}
		})
	}

	m := NewModule(Config{}, &mockLogger{})
	m.SetAuthenticator(&fakeAuthenticator{})
	_, err := m.login(context.Background(), LoginRequest{}, nil)
	assert.Error(t, err)
}
