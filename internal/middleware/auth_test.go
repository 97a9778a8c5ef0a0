package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(testSecret, "cli", 1*time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	expired, err := GenerateToken(testSecret, "cli", -1*time.Minute)
	require.NoError(t, err)
	wrongSecret, err := GenerateToken("another-secret", "cli", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "Missing authorization header",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid token format",
			token:          "InvalidToken",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired token",
			token:          "Bearer " + expired,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong secret",
			token:          "Bearer " + wrongSecret,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			c.Request = req

			JWTAuth(testSecret)(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestJWTAuthWithValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	token, err := GenerateToken(testSecret, "cli", 1*time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c.Request = req

	handler := func(c *gin.Context) {
		clientID, exists := GetClientID(c)
		assert.True(t, exists)
		assert.Equal(t, "cli", clientID)
		c.Status(http.StatusOK)
	}

	JWTAuth(testSecret)(c)
	if !c.IsAborted() {
		handler(c)
	}

	assert.Equal(t, http.StatusOK, w.Code)
}
