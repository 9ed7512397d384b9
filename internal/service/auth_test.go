package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

type mockUserStore struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
	nextID  int
	err     error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byEmail: map[string]*domain.User{},
		byID:    map[string]*domain.User{},
	}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: email}
	}
	return u, nil
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return u, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	created := *user
	created.ID = fmt.Sprintf("user-%d", m.nextID)
	created.IsActive = true
	created.CreatedAt = time.Now().UTC()
	m.byEmail[created.Email] = &created
	m.byID[created.ID] = &created
	return &created, nil
}

func newAuthService(store *mockUserStore) *service.AuthService {
	return service.NewAuthService(store, "test-secret", time.Hour, zap.NewNop())
}

func TestRegisterAndLogin_RoundTrip(t *testing.T) {
	store := newMockUserStore()
	svc := newAuthService(store)

	registered, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "Ana@Example.com",
		Password: "secret1",
		Name:     "Ana Cruz",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.User.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %q", registered.User.Email)
	}
	if registered.User.Role != "customer" {
		t.Errorf("expected default role customer, got %q", registered.User.Role)
	}
	if registered.Token == "" {
		t.Error("expected a token on registration")
	}
	if registered.User.PasswordHash == "secret1" {
		t.Error("password must be stored hashed")
	}

	logged, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "ana@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.User.ID != registered.User.ID {
		t.Errorf("expected same user, got %q vs %q", logged.User.ID, registered.User.ID)
	}

	claims, err := svc.ValidateAccessToken(logged.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Sub != registered.User.ID || claims.Role != "customer" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc := newAuthService(newMockUserStore())

	req := &domain.RegisterRequest{Email: "ana@example.com", Password: "secret1", Name: "Ana"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}

	var conflict *domain.ErrConflict
	if _, err := svc.Register(context.Background(), req); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newAuthService(newMockUserStore())

	cases := map[string]*domain.RegisterRequest{
		"bad email":      {Email: "not-an-email", Password: "secret1", Name: "Ana"},
		"short password": {Email: "a@b.com", Password: "12345", Name: "Ana"},
		"no name":        {Email: "a@b.com", Password: "secret1"},
		"bad role":       {Email: "a@b.com", Password: "secret1", Name: "Ana", Role: "superuser"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			var validation *domain.ErrValidation
			if _, err := svc.Register(context.Background(), req); !errors.As(err, &validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newAuthService(newMockUserStore())

	if _, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email: "ana@example.com", Password: "secret1", Name: "Ana",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var unauthorized *domain.ErrUnauthorized
	_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	svc := newAuthService(newMockUserStore())

	var unauthorized *domain.ErrUnauthorized
	_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := newAuthService(newMockUserStore())

	var unauthorized *domain.ErrUnauthorized
	if _, err := svc.ValidateAccessToken("not.a.jwt"); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	store := newMockUserStore()
	issuer := newAuthService(store)
	verifier := service.NewAuthService(store, "other-secret", time.Hour, zap.NewNop())

	registered, err := issuer.Register(context.Background(), &domain.RegisterRequest{
		Email: "ana@example.com", Password: "secret1", Name: "Ana",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	var unauthorized *domain.ErrUnauthorized
	if _, err := verifier.ValidateAccessToken(registered.Token); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for foreign signature, got %v", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	store := newMockUserStore()
	svc := service.NewAuthService(store, "test-secret", -time.Minute, zap.NewNop())

	registered, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email: "ana@example.com", Password: "secret1", Name: "Ana",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	var unauthorized *domain.ErrUnauthorized
	if _, err := svc.ValidateAccessToken(registered.Token); !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}
