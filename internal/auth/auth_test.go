package auth

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"correct password", hash, "s3cret", true},
		{"wrong password", hash, "wrong", false},
		{"empty password", hash, "", false},
		{"invalid hash", "not-a-hash", "s3cret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashPassword_Salted(t *testing.T) {
	hash1, _ := HashPassword("same")
	hash2, _ := HashPassword("same")
	if hash1 == hash2 {
		t.Error("HashPassword() should produce different hashes for the same password")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret-key"
	token, err := GenerateAccessToken(42, secret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		wantUID uint
		wantErr bool
	}{
		{"valid token", token, secret, 42, false},
		{"wrong secret", token, "wrong-secret", 0, true},
		{"garbage token", "invalid.token.here", secret, 0, true},
		{"empty token", "", secret, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseAccessToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAccessToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims.UserID != tt.wantUID {
				t.Errorf("ParseAccessToken() UserID = %v, want %v", claims.UserID, tt.wantUID)
			}
		})
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	token, err := GenerateAccessToken(1, "test-secret", -1)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := ParseAccessToken(token, "test-secret"); err == nil {
		t.Error("ParseAccessToken() should reject an expired token")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	token1, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	token2, _ := GenerateRefreshToken()

	if token1 == token2 {
		t.Error("GenerateRefreshToken() should generate unique tokens")
	}
	// hex encoded 32 bytes
	if len(token1) != 64 {
		t.Errorf("GenerateRefreshToken() token length = %d, want 64", len(token1))
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	token, _ := GenerateRefreshToken()
	exp := time.Now().Add(24 * time.Hour)
	if err := SaveRefreshToken(db, 7, token, exp); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	rec, err := ValidateRefreshToken(db, token)
	if err != nil {
		t.Fatalf("ValidateRefreshToken() error = %v", err)
	}
	if rec.UserID != 7 {
		t.Errorf("ValidateRefreshToken() UserID = %v, want 7", rec.UserID)
	}

	if _, err := ValidateRefreshToken(db, "unknown"); err == nil {
		t.Error("ValidateRefreshToken() should reject unknown token")
	}

	if err := RevokeRefreshToken(db, token); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	if _, err := ValidateRefreshToken(db, token); err == nil {
		t.Error("ValidateRefreshToken() should reject revoked token")
	}
}

func TestValidateRefreshToken_Expired(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	token, _ := GenerateRefreshToken()
	if err := SaveRefreshToken(db, 7, token, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}
	if _, err := ValidateRefreshToken(db, token); err == nil {
		t.Error("ValidateRefreshToken() should reject expired token")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc123", "", "abc123"},
		{"lowercase scheme", "bearer abc123", "", "abc123"},
		{"query fallback", "", "ws-token", "ws-token"},
		{"header wins over query", "Bearer from-header", "from-query", "from-header"},
		{"wrong scheme falls back", "Basic abc123", "from-query", "from-query"},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/ws"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			r := httptest.NewRequest("GET", url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
