package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcrs-go/internal/middleware"
	"lcrs-go/internal/model"
	"lcrs-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestRespondErrorStatusMapping 验证业务错误族到 HTTP 状态码的完整映射。
func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "版本不存在",
			err:        fmt.Errorf("%w: v-123", service.ErrManifestNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "文档超限",
			err:        &model.OversizedDocumentError{Size: 20 << 20, Limit: 10 << 20},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "声明抽取解析失败",
			err:        &model.ClaimExtractionParseError{Raw: "oops", Err: errors.New("no JSON array found")},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "配额耗尽",
			err:        &model.QuotaExceededError{TenantID: 1, Used: 50, Cap: 50},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "跨租户访问",
			err:        &model.UnauthorizedTenantAccessError{MemberID: 10, TenantID: 2},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "包装后的配额错误仍能识别",
			err:        fmt.Errorf("仿真失败: %w", &model.QuotaExceededError{TenantID: 1}),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "未识别的错误",
			err:        errors.New("database connection lost"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

// 未识别的错误按 500 返回统一文案，内部细节不透给调用方。
func TestRespondErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("dsn: user=root password=secret"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "服务器内部错误", body["message"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestCurrentMember(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	want := &model.Member{ID: 10, TenantID: 1, Email: "member@test.local"}
	c.Set(middleware.PrincipalKey, want)

	member, ok := currentMember(c)

	require.True(t, ok)
	assert.Equal(t, want, member)
}

func TestCurrentMemberMissingPrincipal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	member, ok := currentMember(c)

	assert.False(t, ok)
	assert.Nil(t, member)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCurrentMemberWrongType(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.PrincipalKey, "not a member")

	member, ok := currentMember(c)

	assert.False(t, ok)
	assert.Nil(t, member)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
