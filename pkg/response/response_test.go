package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{5, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPagination(tt.total, 1, tt.pageSize).TotalPages, "total=%d pageSize=%d", tt.total, tt.pageSize)
	}
}

func TestAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Attachment(c, "对账表 2026.xlsx", "application/octet-stream", []byte("data"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename*=UTF-8''%E5%AF%B9%E8%B4%A6%E8%A1%A8%202026.xlsx", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "data", w.Body.String())
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, http.StatusConflict, 20001, "非法的申请状态流转")

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 20001, resp.Code)
	assert.Nil(t, resp.Data)
}
