package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})
	return r
}

func TestAuth(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "user-1",
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	testCases := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{
			name:       "bearer header",
			header:     "Bearer " + valid,
			wantStatus: http.StatusOK,
		},
		{
			name:       "token query param for EventSource",
			query:      "?token=" + valid,
			wantStatus: http.StatusOK,
		},
		{
			name:       "access_token query param",
			query:      "?access_token=" + valid,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signature",
			header: "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "refresh token rejected",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1", "type": "refresh", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing subject",
			header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"type": "access", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	router := authRouter()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus == http.StatusOK && !containsUser(w.Body.String()) {
				t.Errorf("handler did not see user id: %s", w.Body.String())
			}
		})
	}
}

func containsUser(body string) bool {
	return body == `{"user_id":"user-1"}`
}
