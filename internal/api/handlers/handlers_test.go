package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func paginationContext(t *testing.T, query string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestPaginationDefaults(t *testing.T) {
	limit, offset := paginationParams(paginationContext(t, ""))
	require.Equal(t, 20, limit)
	require.Equal(t, 0, offset)
}

func TestPaginationPageOffset(t *testing.T) {
	limit, offset := paginationParams(paginationContext(t, "page=3&limit=10"))
	require.Equal(t, 10, limit)
	require.Equal(t, 20, offset)
}

func TestPaginationCapsLimit(t *testing.T) {
	limit, _ := paginationParams(paginationContext(t, "limit=500"))
	require.Equal(t, 100, limit)
}

func TestPaginationRejectsGarbage(t *testing.T) {
	limit, offset := paginationParams(paginationContext(t, "page=-1&limit=abc"))
	require.Equal(t, 20, limit)
	require.Equal(t, 0, offset)
}

func TestPaginatedEnvelope(t *testing.T) {
	body := paginated([]string{"a", "b"}, 42, 20, 40)
	require.Equal(t, 42, body["total"])
	require.Equal(t, 3, body["page"])
	require.Equal(t, 20, body["limit"])
}
