package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newAdminRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuth(token))
	r.GET("/settle", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAdminAuth(t *testing.T) {
	cases := map[string]struct {
		token  string
		header string
		want   int
	}{
		"disabled without token": {token: "", header: "Bearer ", want: http.StatusForbidden},
		"missing header":         {token: "s3cret", want: http.StatusUnauthorized},
		"wrong token":            {token: "s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
		"wrong scheme":           {token: "s3cret", header: "Basic s3cret", want: http.StatusUnauthorized},
		"valid token":            {token: "s3cret", header: "Bearer s3cret", want: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/settle", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newAdminRouter(tc.token).ServeHTTP(w, req)
			require.Equal(t, tc.want, w.Code)
		})
	}
}
