package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey       = "user_id"
	CtxTenantIDKey     = "tenant_id"
	CtxRoleKey         = "role"
	CtxEmployeeULIDKey = "employee_ulid"
)

// コンテキスト取り出しヘルパ（RequireAuth 通過後のみ有効）
func UserID(c *gin.Context) string   { return c.GetString(CtxUserIDKey) }
func TenantID(c *gin.Context) string { return c.GetString(CtxTenantIDKey) }
func Role(c *gin.Context) string     { return c.GetString(CtxRoleKey) }

// EmployeeULID: worker アカウントに紐づく従業員ID。なければ空文字。
func EmployeeULID(c *gin.Context) string { return c.GetString(CtxEmployeeULIDKey) }

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/tenant/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing sub"})
			return
		}

		tenant, ok := claims["tenant_id"].(string)
		if !ok || tenant == "" {
			// テナント境界が切れないトークンは全面拒否
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing tenant_id"})
			return
		}

		role := ""
		if v, has := claims["role"]; has {
			if rs, ok := v.(string); ok {
				role = rs
			}
		}

		c.Set(CtxUserIDKey, sub)
		c.Set(CtxTenantIDKey, tenant)
		c.Set(CtxRoleKey, role)
		if v, has := claims["employee_ulid"]; has {
			if es, ok := v.(string); ok {
				c.Set(CtxEmployeeULIDKey, es)
			}
		}

		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing role"})
			return
		}

		role, ok := v.(string)
		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid role"})
			return
		}

		if _, allowed := roleSet[role]; !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
