package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
	"github.com/vahri/branchguard/internal/requestctx"
)

// Claims is the JWT claims structure issued at login.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// JWT validates the bearer token (header or "token" cookie), loads the
// user, and captures the principal into the request context exactly
// once. The route guard, object-scope checks and the storage
// row-security predicate all read that one principal.
func JWT(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader("Authorization")
		if tokenStr == "" {
			if cookie, err := c.Cookie("token"); err == nil {
				tokenStr = "Bearer " + cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				objects.Fail(objects.CodeUnauthenticated, "missing bearer token"))
			return
		}

		tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))

		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				objects.Fail(objects.CodeUnauthenticated, "invalid or expired token"))
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				objects.Fail(objects.CodeUnauthenticated, "invalid claims"))
			return
		}

		// The token only names the user; role, branch and admin flag
		// are always read fresh so revocations apply immediately.
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				objects.Fail(objects.CodeUnauthenticated, "user not found"))
			return
		}
		if user.Status != models.UserActive {
			c.AbortWithStatusJSON(http.StatusForbidden,
				objects.Fail(objects.CodeForbidden, "account disabled"))
			return
		}

		ctx := requestctx.WithPrincipal(c.Request.Context(), requestctx.Principal{
			UserID:   user.ID,
			RoleID:   user.RoleID,
			BranchID: user.BranchID,
			IsAdmin:  user.IsAdmin,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
