package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"luxio/models"
	"luxio/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRevocations map[string]bool

func (f fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return f[id], nil
}

// fakeCSRF maps token to the binding it was issued for.
type fakeCSRF struct {
	issued map[string]string
	err    error
}

func (f fakeCSRF) Valid(_ context.Context, token, binding string) (bool, error) {
	owner, ok := f.issued[token]
	return ok && binding != "" && owner == binding, f.err
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func authRouter(revoked RevocationChecker) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret, revoked))
	r.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid, claims, err := utils.GenerateToken(testSecret, 7, "a@luxio.shop", time.Hour)
	require.NoError(t, err)
	expired, _, err := utils.GenerateToken(testSecret, 7, "a@luxio.shop", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		cookie  string
		revoked fakeRevocations
		status  int
		code    string
	}{
		{name: "missing", status: http.StatusUnauthorized, code: models.CodeTokenMissing},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized, code: models.CodeTokenMissing},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, code: models.CodeInvalidToken},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized, code: models.CodeJWTExpired},
		{name: "revoked", header: "Bearer " + valid, revoked: fakeRevocations{claims.ID: true}, status: http.StatusUnauthorized, code: models.CodeSessionExpired},
		{name: "header", header: "Bearer " + valid, status: http.StatusOK},
		{name: "cookie", cookie: valid, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			authRouter(tt.revoked).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, w).Code)
			} else {
				assert.JSONEq(t, `{"id":7}`, w.Body.String())
			}
		})
	}
}

func TestCSRFMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CSRFMiddleware(fakeCSRF{issued: map[string]string{"good": "sid-a"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.CodeCSRFMissing, decodeError(t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-CSRF-Token", "stale")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.CodeCSRFInvalid, decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-CSRF-Token", "good")
	req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: "sid-a"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFMiddleware_TokenFromAnotherBrowser(t *testing.T) {
	r := gin.New()
	r.Use(CSRFMiddleware(fakeCSRF{issued: map[string]string{"good": "sid-a"}}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, cookie := range []*http.Cookie{nil, {Name: CSRFCookie, Value: "sid-b"}} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set("X-CSRF-Token", "good")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, models.CodeCSRFInvalid, decodeError(t, w).Code)
	}
}

func TestCSRFMiddleware_StoreDown(t *testing.T) {
	r := gin.New()
	r.Use(CSRFMiddleware(fakeCSRF{err: errors.New("redis down")}))
	r.DELETE("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	req.Header.Set("X-CSRF-Token", "any")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://luxio.shop"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://luxio.shop")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://luxio.shop", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_WildcardHasNoCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLanguageMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(LanguageMiddleware(""))
	r.GET("/*path", func(c *gin.Context) { c.String(http.StatusOK, Language(c)) })

	tests := []struct {
		target, cookie, accept, want string
	}{
		{target: "/fr/cart", accept: "es", want: "fr"},
		{target: "/api/products?lang=pl", accept: "es", want: "pl"},
		{target: "/api/products", cookie: "it", accept: "es", want: "it"},
		{target: "/api/products", accept: "hu-HU,hu;q=0.9", want: "hu"},
		{target: "/api/products", accept: "ja", want: "en"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.cookie != "" {
			req.AddCookie(&http.Cookie{Name: "luxio-language", Value: tt.cookie})
		}
		req.Header.Set("Accept-Language", tt.accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Body.String(), tt.target)
		assert.Equal(t, tt.want, w.Header().Get("Content-Language"))
	}
}

func TestLanguageMiddleware_ConfiguredDefault(t *testing.T) {
	r := gin.New()
	r.Use(LanguageMiddleware("fr"))
	r.GET("/*path", func(c *gin.Context) { c.String(http.StatusOK, Language(c)) })

	for target, want := range map[string]string{"/api/products": "fr", "/es/cart": "es"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept-Language", "ja")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Body.String(), target)
	}
}

func TestRecordOrderOperation(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordOrderOperation("create", true)
		RecordPaymentInit("nowpayments", false)
	})
}

func TestAdminKeyMiddleware(t *testing.T) {
	for _, tt := range []struct {
		key, header string
		status      int
	}{
		{key: "s3cret", header: "s3cret", status: http.StatusOK},
		{key: "s3cret", header: "wrong", status: http.StatusForbidden},
		{key: "", header: "", status: http.StatusForbidden},
	} {
		r := gin.New()
		r.Use(AdminKeyMiddleware(tt.key))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderAdminKey, tt.header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code)
	}
}
