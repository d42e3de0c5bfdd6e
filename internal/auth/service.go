package auth

import (
	"context"
	"errors"
	"time"

	"paperstock/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	pool         *pgxpool.Pool
	issuer       string
	secret       []byte
	ttl          time.Duration
	startingCash decimal.Decimal
}

type User struct {
	ID       string
	Username string
}

func NewService(pool *pgxpool.Pool, issuer string, secret []byte, ttl time.Duration, startingCash decimal.Decimal) *Service {
	return &Service{pool: pool, issuer: issuer, secret: secret, ttl: ttl, startingCash: startingCash}
}

// Register creates a user with the starting cash endowment. The insert is a
// no-op when the username is taken; no existing row is ever overwritten.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (string, error) {
	if username == "" {
		return "", apperr.New(apperr.KindValidation, "you must provide a username")
	}
	if password == "" {
		return "", apperr.New(apperr.KindValidation, "you must provide a password")
	}
	if confirmation == "" {
		return "", apperr.New(apperr.KindValidation, "you must re-enter the password")
	}
	if password != confirmation {
		return "", apperr.New(apperr.KindValidation, "the two passwords do not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	var userID string
	err = s.pool.QueryRow(ctx,
		"insert into users (username, hash, cash) values ($1, $2, $3) on conflict (username) do nothing returning id",
		username, string(hash), s.startingCash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.New(apperr.KindDuplicateUsername, "the username already exists")
		}
		return "", err
	}
	return userID, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperr.New(apperr.KindValidation, "username and password required")
	}
	var userID string
	var hash string
	err := s.pool.QueryRow(ctx, "select id, hash from users where username = $1", username).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.New(apperr.KindAuthentication, "invalid credentials")
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", apperr.New(apperr.KindAuthentication, "invalid credentials")
	}
	return s.SignToken(userID)
}

// ChangePassword overwrites the stored hash after verifying the current
// password. Existing tokens stay valid; no re-login is required.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	if current == "" {
		return apperr.New(apperr.KindValidation, "you must enter the current password")
	}
	if newPassword == "" {
		return apperr.New(apperr.KindValidation, "you must enter a new password")
	}
	if confirm == "" {
		return apperr.New(apperr.KindValidation, "you must re-enter the new password")
	}
	if newPassword != confirm {
		return apperr.New(apperr.KindValidation, "the two passwords do not match")
	}
	var hash string
	err := s.pool.QueryRow(ctx, "select hash from users where id = $1", userID).Scan(&hash)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)); err != nil {
		return apperr.New(apperr.KindAuthentication, "incorrect password")
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "update users set hash = $1 where id = $2", string(newHash), userID)
	return err
}

func (s *Service) SignToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, "select id, username from users where id = $1", userID).Scan(&u.ID, &u.Username)
	return u, err
}
