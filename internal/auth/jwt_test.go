package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateToken_ReturnsValidToken(t *testing.T) {
	token, err := GenerateToken("test-secret", "alice", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Nickname != "alice" {
		t.Errorf("expected nickname %q, got %q", "alice", claims.Nickname)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret-a", "alice", time.Hour)

	if _, err := ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, _ := GenerateToken("test-secret", "alice", -time.Minute)

	if _, err := ValidateToken("test-secret", token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	if _, err := ValidateToken("test-secret", "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Nickname: "mallory"})
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken("test-secret", tokenStr); err == nil {
		t.Fatal("expected error for unsigned token")
	}
}

func TestValidateToken_RequiresNickname(t *testing.T) {
	token, _ := GenerateToken("test-secret", "", time.Hour)

	if _, err := ValidateToken("test-secret", token); err == nil {
		t.Fatal("expected error for token without nickname")
	}
}
