package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/config"
	"github.com/cppla/blogsvc/middleware"
	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/utils"
)

// AuthController handles registration, login and account administration.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates a local account and signs the user in.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"omitempty,email"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if l := utf8.RuneCountInString(req.Username); l < 3 || l > 32 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-32 characters")
		return
	}
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-' and '_'")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > utils.MaxPasswordBytes {
		utils.Error(ctx, http.StatusBadRequest, 40002, "password must be 6-72 characters")
		return
	}

	var count int64
	if err := a.db.WithContext(ctx.Request.Context()).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		utils.Logger.Error("count users by name", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create user")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.UserActive,
	}
	if isAdminUsername(user.Username) {
		user.Role = models.RoleAdmin
	}

	if err := a.db.WithContext(ctx.Request.Context()).Create(&user).Error; err != nil {
		// a concurrent registration took the name after the count above
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Logger.Error("create user", zap.String("username", user.Username), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := issueToken(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Sugar.Infow("user registered", "user_id", user.ID, "role", user.Role)
	utils.Created(ctx, gin.H{"token": token, "user": user})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx.Request.Context()).Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if user.Status != models.UserActive {
		utils.Error(ctx, http.StatusForbidden, 40303, "account is blocked")
		return
	}

	token, err := issueToken(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	expiresAt := time.Now().Add(tokenTTL())
	if v, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if claims, ok := v.(*utils.Claims); ok && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx.Request.Context()).First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, user)
}

// ListUsers returns paginated users, optionally filtered by status.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	page, limit := utils.ParsePagination(ctx.Query("page"), ctx.Query("limit"))

	query := a.db.WithContext(ctx.Request.Context()).Model(&models.User{})
	if raw := strings.TrimSpace(ctx.Query("status")); raw != "" {
		status := models.UserStatus(strings.ToUpper(raw))
		if !status.Valid() {
			utils.Error(ctx, http.StatusBadRequest, 40011, "status must be ACTIVE or BLOCKED")
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to count users")
		return
	}

	users := []models.User{}
	if err := query.Order("created_at DESC").Order("id DESC").Offset(utils.Skip(page, limit)).Limit(limit).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to retrieve users")
		return
	}

	utils.Success(ctx, gin.H{
		"data":       users,
		"pagination": utils.NewPagination(total, page, limit),
	})
}

// UpdateUserStatus blocks or reactivates an account.
func (a *AuthController) UpdateUserStatus(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid user id")
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" binding:"required,oneof=ACTIVE BLOCKED"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40013, "status must be ACTIVE or BLOCKED")
		return
	}
	if self, _ := getUserID(ctx); self == id && req.Status == models.UserBlocked {
		utils.Error(ctx, http.StatusBadRequest, 40014, "cannot block yourself")
		return
	}

	var user models.User
	db := a.db.WithContext(ctx.Request.Context())
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to get user")
		return
	}

	if err := db.Model(&user).Update("status", req.Status).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to update user")
		return
	}
	user.Status = req.Status
	utils.Sugar.Infow("user status changed", "user_id", user.ID, "status", req.Status)
	utils.Success(ctx, user)
}

func validUsername(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

// isAdminUsername checks whether given username is configured as an admin (case-insensitive)
func isAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

func tokenTTL() time.Duration {
	return time.Duration(config.Get().TokenTTLHours) * time.Hour
}

func issueToken(user models.User) (string, error) {
	return utils.GenerateToken(user.ID, user.Username, string(user.Role), tokenTTL())
}
