package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.Register(ctx, Credentials{Phone: "+254744000001", Name: "Asha", PIN: "1234"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Name != "Asha" {
		t.Fatalf("expected name Asha, got %s", user.Name)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Phone: user.Phone, PIN: "1234"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
	}
}

func TestAuthenticateWrongPIN(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "+254744000002", Name: "Brian", PIN: "1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Phone: "+254744000002", PIN: "9999"}); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected invalid PIN, got %v", err)
	}
}

func TestRegisterRejectsShortPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	if _, err := svc.Register(context.Background(), Credentials{Phone: "+254744000003", PIN: "12"}); err == nil {
		t.Fatal("expected error for short PIN")
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "+254744000004", PIN: "1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Phone: "+254744000004", PIN: "1234"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected user exists, got %v", err)
	}
}
