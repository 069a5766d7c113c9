package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	// HeaderUserID 上游鉴权网关注入的用户标识
	HeaderUserID = "X-User-ID"
	userIDKey    = "user_id"
)

// UserIdentity 要求请求携带 X-User-ID，缺失时 401
func UserIdentity() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		userID := strings.TrimSpace(string(c.GetHeader(HeaderUserID)))
		if userID == "" {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{
				"code":    "Unauthenticated",
				"message": "missing " + HeaderUserID + " header",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next(ctx)
	}
}

// UserID 由 UserIdentity 写入的用户标识
func UserID(c *app.RequestContext) string {
	return c.GetString(userIDKey)
}
