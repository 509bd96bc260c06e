package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"academy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by Authenticate.
const (
	CtxUserID       = "userID"
	CtxUserRole     = "userRole"
	CtxDepartmentID = "departmentID"
)

// PermissionSource resolves the permission codes granted to a role.
type PermissionSource interface {
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

// Auth verifies access tokens and checks roles and permissions.
type Auth struct {
	secret       []byte
	perms        PermissionSource
	secure       bool
	accessTTL    time.Duration
	refreshTTL   time.Duration
	permCache    sync.Map // roleName -> permCacheEntry
	permCacheTTL time.Duration
}

// NewAuth builds the auth middleware. secure switches cookies to SameSite=None; Secure.
func NewAuth(secret []byte, perms PermissionSource, secure bool, accessTTL, refreshTTL time.Duration) *Auth {
	return &Auth{
		secret:       secret,
		perms:        perms,
		secure:       secure,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		permCacheTTL: 5 * time.Minute,
	}
}

func (a *Auth) cookieMode() (http.SameSite, bool) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	if a.secure {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (a *Auth) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, int(a.accessTTL.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, int(a.refreshTTL.Seconds()), "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (a *Auth) ClearTokenCookies(c *gin.Context) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

func tokenFromRequest(c *gin.Context) (string, string) {
	// Try cookie first, fallback to Authorization header
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr == nil && tokenString != "" {
		return tokenString, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// Authenticate validates the JWT and stores the caller in the gin context.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := tokenFromRequest(c)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, msg))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token subject"))
			return
		}
		userRole, ok := claims["role"].(string)
		if !ok || userRole == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxUserRole, userRole)
		if raw, ok := claims["department_id"].(string); ok && raw != "" {
			if deptID, err := uuid.Parse(raw); err == nil {
				c.Set(CtxDepartmentID, deptID)
			}
		}

		c.Next()
	}
}

// RequireRole checks the authenticated user's role against allowedRoles.
// It must run after Authenticate.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(CtxUserRole)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// RequirePermission checks that the user's role holds every required permission code.
// It must run after Authenticate.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userPerms, err := a.Permissions(c.Request.Context(), c.GetString(CtxUserRole))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		permSet := make(map[string]bool, len(userPerms))
		for _, p := range userPerms {
			permSet[p] = true
		}
		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// Permissions returns cached or freshly fetched permission codes for a role name.
func (a *Auth) Permissions(ctx context.Context, roleName string) ([]string, error) {
	if entry, ok := a.permCache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	codes, err := a.perms.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	a.permCache.Store(roleName, permCacheEntry{
		codes:     codes,
		expiresAt: time.Now().Add(a.permCacheTTL),
	})
	return codes, nil
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func (a *Auth) ClearPermissionCache(roleName string) {
	if roleName == "" {
		a.permCache.Range(func(key, _ interface{}) bool {
			a.permCache.Delete(key)
			return true
		})
		return
	}
	a.permCache.Delete(roleName)
}
