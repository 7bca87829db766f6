package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, issuer string) string {
	t.Helper()
	claims := Claims{
		UserID:    "emp-1",
		UserType:  "employee",
		CompanyID: "co-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	token := signToken(t, "secret", "shiftly-auth")
	claims, err := ParseToken("secret", "shiftly-auth", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "emp-1" || claims.UserType != "employee" || claims.CompanyID != "co-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsBadSecret(t *testing.T) {
	token := signToken(t, "secret", "shiftly-auth")
	if _, err := ParseToken("other-secret", "shiftly-auth", token); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	token := signToken(t, "secret", "someone-else")
	if _, err := ParseToken("secret", "shiftly-auth", token); err == nil {
		t.Fatalf("expected error for wrong issuer")
	}
}
