package apikey

import (
	"strings"

	"DocLink/internal/modules/client/application/service"
	"DocLink/pkg/back"
	"DocLink/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// Auth 校验 Authorization 头中的 API key，把租户标识写入 context。
// 后续 handler 通过 c.GetString("client_id") 获取租户。
func Auth(clientSvc service.ClientService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("Authorization"))
		key = strings.TrimPrefix(key, "Bearer ")
		if key == "" {
			back.Error(c, xerr.Unauthorized, xerr.ErrAPIKeyRequired.Message)
			c.Abort()
			return
		}

		client, err := clientSvc.Authenticate(c.Request.Context(), key)
		if err != nil {
			if e, ok := err.(*xerr.CodeError); ok {
				back.Error(c, e.Code, e.Message)
			} else {
				back.Error(c, xerr.Unauthorized, xerr.ErrInvalidAPIKey.Message)
			}
			c.Abort()
			return
		}

		c.Set("client_id", client.ClientID)
		c.Next()
	}
}

// AdminAuth 校验管理后台的固定 admin key
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("Authorization"))
		key = strings.TrimPrefix(key, "Bearer ")
		if adminKey == "" || key != adminKey {
			back.Error(c, xerr.Unauthorized, "Invalid admin API key")
			c.Abort()
			return
		}
		c.Next()
	}
}
