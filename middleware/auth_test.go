package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("secret", "masjid-auth")

	valid, err := v.Sign("u1", "bilal@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	expired, _ := v.Sign("u1", "", -time.Minute)
	otherIssuer, _ := NewJWTVerifier("secret", "someone-else").Sign("u1", "", time.Hour)
	otherSecret, _ := NewJWTVerifier("nope", "masjid-auth").Sign("u1", "", time.Hour)
	noSubject, _ := v.Sign("", "", time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "masjid-auth"},
	}).SignedString([]byte("secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "masjid-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"expired", expired, true},
		{"other issuer", otherIssuer, true},
		{"other secret", otherSecret, true},
		{"no subject", noSubject, true},
		{"no expiry", noExpiry, true},
		{"wrong algorithm", wrongAlg, true},
		{"garbage", "not.a.token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if user.ID != "u1" || user.Email != "bilal@example.com" {
				t.Errorf("Verify() = %+v", user)
			}
		})
	}
}

func TestAuthClientVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/me" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(AuthUser{ID: "42", Username: "bilal", Email: "b@example.com"})
	}))
	defer srv.Close()

	c := NewAuthClient(srv.URL + "/")
	user, err := c.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "42" || user.Email != "b@example.com" {
		t.Errorf("Verify() = %+v", user)
	}

	if _, err := c.Verify(context.Background(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewJWTVerifier("secret", "")
	token, _ := v.Sign("u1", "bilal@example.com", time.Hour)

	newRouter := func(fallback bool) *gin.Engine {
		r := gin.New()
		r.Use(AuthMiddleware(v, zap.NewNop(), fallback))
		r.GET("/me", func(c *gin.Context) {
			id, ok := IdentityFromContext(c)
			if !ok {
				c.Status(http.StatusTeapot)
				return
			}
			c.JSON(http.StatusOK, gin.H{"id": id.ID, "email": id.Email})
		})
		return r
	}

	tests := []struct {
		name     string
		fallback bool
		header   string
		query    string
		wantCode int
		wantID   string
	}{
		{"bearer header", false, "Bearer " + token, "", http.StatusOK, "u1"},
		{"lowercase scheme", false, "bearer " + token, "", http.StatusOK, "u1"},
		{"query token", false, "", "?access_token=" + token, http.StatusOK, "u1"},
		{"missing", false, "", "", http.StatusUnauthorized, ""},
		{"invalid", false, "Bearer junk", "", http.StatusUnauthorized, ""},
		{"basic scheme", false, "Basic dXNlcg==", "?access_token=" + token, http.StatusUnauthorized, ""},
		{"fallback without token", true, "", "", http.StatusOK, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.fallback).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantID == "" {
				return
			}
			var body map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["id"] != tt.wantID {
				t.Errorf("id = %q, want %q", body["id"], tt.wantID)
			}
		})
	}
}
