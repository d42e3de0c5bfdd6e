package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"paperstock/internal/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	_, err = pool.Exec(ctx, `create table if not exists users (
		id       uuid primary key default gen_random_uuid(),
		username text not null unique,
		hash     text not null,
		cash     numeric(32,4) not null
	)`)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return pool
}

func TestRegisterPersistsAndRejectsDuplicates(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewService(pool, "paperstock-test", []byte("test-secret"), time.Hour, decimal.RequireFromString("10000.0000"))

	username := "alice-" + uuid.NewString()
	t.Cleanup(func() {
		pool.Exec(ctx, "delete from users where username = $1", username)
	})

	userID, err := svc.Register(ctx, username, "opensesame", "opensesame")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if userID == "" {
		t.Fatal("Register returned an empty user id")
	}
	var cash decimal.Decimal
	var hash string
	if err := pool.QueryRow(ctx, "select cash, hash from users where id = $1", userID).Scan(&cash, &hash); err != nil {
		t.Fatalf("read user: %v", err)
	}
	if !cash.Equal(decimal.RequireFromString("10000")) {
		t.Errorf("starting cash = %s, want 10000", cash)
	}

	_, err = svc.Register(ctx, username, "different", "different")
	if apperr.KindOf(err) != apperr.KindDuplicateUsername {
		t.Fatalf("duplicate Register: KindOf = %v, want KindDuplicateUsername", apperr.KindOf(err))
	}
	var count int
	if err := pool.QueryRow(ctx, "select count(*) from users where username = $1", username).Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users rows after duplicate register = %d, want 1", count)
	}
	var hashAfter string
	if err := pool.QueryRow(ctx, "select hash from users where id = $1", userID).Scan(&hashAfter); err != nil {
		t.Fatalf("re-read user: %v", err)
	}
	if hashAfter != hash {
		t.Error("duplicate register overwrote the stored hash")
	}

	// The original password still works; the duplicate attempt changed nothing.
	token, err := svc.Login(ctx, username, "opensesame")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	subject, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if subject != userID {
		t.Errorf("token subject = %s, want %s", subject, userID)
	}
	if _, err := svc.Login(ctx, username, "different"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Errorf("wrong password Login: KindOf = %v, want KindAuthentication", apperr.KindOf(err))
	}
}

func TestChangePasswordRotatesHash(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewService(pool, "paperstock-test", []byte("test-secret"), time.Hour, decimal.RequireFromString("10000.0000"))

	username := "bob-" + uuid.NewString()
	t.Cleanup(func() {
		pool.Exec(ctx, "delete from users where username = $1", username)
	})
	userID, err := svc.Register(ctx, username, "oldpass", "oldpass")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, userID, "wrong", "newpass", "newpass"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Fatalf("wrong current password: KindOf = %v, want KindAuthentication", apperr.KindOf(err))
	}
	if _, err := svc.Login(ctx, username, "oldpass"); err != nil {
		t.Fatalf("old password stopped working after rejected change: %v", err)
	}

	if err := svc.ChangePassword(ctx, userID, "oldpass", "newpass", "newpass"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := svc.Login(ctx, username, "newpass"); err != nil {
		t.Errorf("Login with new password failed: %v", err)
	}
	if _, err := svc.Login(ctx, username, "oldpass"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Errorf("old password Login: KindOf = %v, want KindAuthentication", apperr.KindOf(err))
	}
}
