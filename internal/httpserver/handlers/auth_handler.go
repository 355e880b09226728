package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/auth"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
)

// Login authenticates the user and returns a JWT.
func Login(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeBadRequest, "email and password required"))
			return
		}

		var user models.User
		if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, objects.Fail(objects.CodeUnauthenticated, "invalid email or password"))
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, objects.Fail(objects.CodeUnauthenticated, "invalid email or password"))
			return
		}
		if user.Status != models.UserActive {
			c.JSON(http.StatusForbidden, objects.Fail(objects.CodeForbidden, "account disabled"))
			return
		}

		claims := auth.Claims{
			UserID: user.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, objects.Fail(objects.CodeInternal, "failed to create token"))
			return
		}

		c.SetCookie("token", tokenString, 3600*24, "/", "", false, true)
		c.JSON(http.StatusOK, objects.OK(gin.H{
			"token": tokenString,
			"user": gin.H{
				"email":     user.Email,
				"name":      user.Name,
				"branch_id": user.BranchID,
			},
		}))
	}
}

// Logout clears the token cookie.
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie("token", "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, objects.OK(gin.H{"logged_out": true}))
	}
}

// Me returns the authenticated principal.
func Me(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var user models.User
		if err := db.Preload("Role").Preload("Branch").First(&user, p.UserID).Error; err != nil {
			AbortError(c, err)
			return
		}

		c.JSON(http.StatusOK, objects.OK(gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"name":     user.Name,
			"role":     user.Role,
			"branch":   user.Branch,
			"is_admin": user.IsAdmin,
			"status":   user.Status,
		}))
	}
}
