package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

const minPasswordLength = 8

var codeRange = big.NewInt(1_000_000)

// generateCode returns a uniformly random 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// codeMatches is false for cleared or expired codes.
func codeMatches(user model.User, presented string, now time.Time) bool {
	if user.VerificationCode == "" || user.VerificationExpiresAt == nil {
		return false
	}
	if !now.Before(*user.VerificationExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.VerificationCode), []byte(strings.TrimSpace(presented))) == 1
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apierror.InvalidInput("email is required", "email")
	}

	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", apierror.InvalidInput("email is invalid", "email")
	}

	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apierror.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength), "password")
	}
	if len(password) > 72 {
		return apierror.InvalidInput("password must be at most 72 bytes", "password")
	}
	return nil
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// passwordMatches is false for principals without a local password.
func passwordMatches(hash string, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var handleInvalidChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// handleFromEmail derives a handle from the local part of an email address.
func handleFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	handle := strings.Trim(handleInvalidChars.ReplaceAllString(local, ""), "._-")
	if handle == "" {
		return "user"
	}
	return handle
}

func normalizeHandle(raw string) (string, error) {
	handle := strings.TrimSpace(raw)
	if handle == "" {
		return "", apierror.InvalidInput("handle is required", "handle")
	}
	if len(handle) > 64 || strings.ContainsAny(handle, " @\t\n") {
		return "", apierror.InvalidInput("handle is invalid", "handle")
	}
	return handle, nil
}
