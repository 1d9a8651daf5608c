package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/capacita/internal/model"
)

func testUser() model.User {
	return model.User{
		ID:          "1700000000000abcdefghi",
		Nome:        "Ana Silva",
		Email:       "ana@x.com",
		TipoUsuario: model.KindStudent,
	}
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := NewTokenManager("test-secret", 7*24*time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token = %q, want JWT with 3 segments", token)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID() != "1700000000000abcdefghi" {
		t.Errorf("UserID = %q, want %q", claims.UserID(), "1700000000000abcdefghi")
	}
	if claims.Email != "ana@x.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ana@x.com")
	}
	if claims.TipoUsuario != model.KindStudent {
		t.Errorf("TipoUsuario = %q, want %q", claims.TipoUsuario, model.KindStudent)
	}
	if claims.Nome != "Ana Silva" {
		t.Errorf("Nome = %q, want %q", claims.Nome, "Ana Silva")
	}

	exp := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if exp != 7*24*time.Hour {
		t.Errorf("lifetime = %v, want 168h", exp)
	}
}

func TestTokenManager_CompanyNameInClaims(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	u := testUser()
	u.TipoUsuario = model.KindCompany
	u.NomeEmpresa = "Padaria Central"

	token, err := m.Issue(u)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Nome != "Padaria Central" {
		t.Errorf("Nome = %q, want company name", claims.Nome)
	}
}

func TestTokenManager_VerifyRejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	valid, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other := NewTokenManager("other-secret", time.Hour)
	foreign, err := other.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	expiredManager := NewTokenManager("test-secret", time.Hour)
	expiredManager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredManager.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "x", "exp": time.Now().Add(time.Hour).Unix()})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "空文字列", token: ""},
		{name: "形式不正", token: "not-a-jwt"},
		{name: "改ざんされた署名", token: valid[:len(valid)-2] + "xx"},
		{name: "別のシークレット", token: foreign},
		{name: "期限切れ", token: expired},
		{name: "alg=none", token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenManager_AcceptsLegacyUserIDClaim(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   "legacy-1",
		"userType": "student",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	token, err := legacy.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign legacy token: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID() != "legacy-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID(), "legacy-1")
	}
	if got := claims.Identity().ID; got != "legacy-1" {
		t.Errorf("Identity().ID = %q, want %q", got, "legacy-1")
	}
}

func TestTokenManager_RejectsTokenWithoutUser(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	anon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := anon.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify error = %v, want ErrInvalidToken", err)
	}
}
