package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/security"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

var validRoles = []string{models.RoleUser, models.RoleAdmin}

// AuthHandler serves registration, login and account endpoints.
type AuthHandler struct {
	st         store.Store
	jwtSecret  string
	bcryptCost int
}

func NewAuthHandler(st store.Store, jwtSecret string, bcryptCost int) *AuthHandler {
	return &AuthHandler{st: st, jwtSecret: jwtSecret, bcryptCost: bcryptCost}
}

// Register handles public self-registration. Accounts always start as
// regular users; privileged accounts only come from the admin endpoint.
func (h *AuthHandler) Register(c *gin.Context) {
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		username = strings.TrimSpace(strings.TrimSpace(body.FirstName) + " " + strings.TrimSpace(body.LastName))
	}
	email := strings.TrimSpace(body.Email)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	hash, errHash := security.HashPassword(body.Password, h.bcryptCost)
	if errHash != nil {
		log.WithError(errHash).Error("hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	id, errCreate := h.st.Insert(c.Request.Context(), models.TableUsers, store.Row{
		"username":       username,
		"password_hash":  hash,
		"email":          email,
		"role":           models.RoleUser,
		"is_super_admin": false,
		"created_at":     time.Now().UTC(),
	})
	if errCreate != nil {
		if errors.Is(errCreate, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email or username already exists"})
			return
		}
		log.WithError(errCreate).Error("create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully. Please log in.",
		"user": gin.H{
			"id":             id,
			"username":       username,
			"email":          email,
			"role":           models.RoleUser,
			"is_super_admin": false,
		},
	})
}

// Login authenticates by username or email. Accounts enrolled in TOTP must
// supply a valid code; the 403 response tells the client to prompt for one.
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Identifier string `json:"identifier"`
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Token      string `json:"token"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	identifier := strings.TrimSpace(body.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(body.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(body.Email)
	}
	if identifier == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username/Email and password are required"})
		return
	}

	row, errFind := h.st.UserByUsername(c.Request.Context(), identifier)
	if errors.Is(errFind, store.ErrNotFound) {
		row, errFind = h.st.UserByEmail(c.Request.Context(), identifier)
	}
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		log.WithError(errFind).Error("find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if !security.CheckPassword(util.AsString(row["password_hash"]), body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if secret := util.AsString(row["two_factor_secret"]); secret != "" {
		code := strings.TrimSpace(body.Token)
		if code == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "2FA token required", "require2fa": true})
			return
		}
		if !security.VerifyTOTP(code, secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA token"})
			return
		}
	}

	userID := rowID(row)
	username := util.AsString(row["username"])
	role := util.AsString(row["role"])
	isSuper := util.AsBool(row["is_super_admin"])

	token, errSign := security.GenerateToken(h.jwtSecret, userID, username, role, isSuper)
	if errSign != nil {
		log.WithError(errSign).Error("sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":             userID,
			"username":       username,
			"email":          row["email"],
			"role":           role,
			"is_super_admin": isSuper,
		},
	})
}

// AdminRegister creates accounts with an explicit role. Admin accounts get a
// freshly provisioned TOTP secret and the QR code is returned once, here.
func (h *AuthHandler) AdminRegister(c *gin.Context) {
	var body struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Role         string `json:"role"`
		IsSuperAdmin bool   `json:"is_super_admin"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	role := strings.ToLower(strings.TrimSpace(body.Role))
	if role == "" {
		role = models.RoleUser
	}
	if !inList(role, validRoles) {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid role. Must be "user" or "admin"`})
		return
	}

	hash, errHash := security.HashPassword(body.Password, h.bcryptCost)
	if errHash != nil {
		log.WithError(errHash).Error("hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	row := store.Row{
		"username":       username,
		"password_hash":  hash,
		"role":           role,
		"is_super_admin": body.IsSuperAdmin,
		"created_at":     time.Now().UTC(),
	}
	if email := strings.TrimSpace(body.Email); email != "" {
		row["email"] = email
	}

	var twoFactor *security.TwoFactorKey
	if role == models.RoleAdmin {
		key, errKey := security.GenerateTwoFactorKey(username)
		if errKey != nil {
			log.WithError(errKey).Error("generate totp key")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}
		twoFactor = key
		row["two_factor_secret"] = key.Secret
	}

	id, errCreate := h.st.Insert(c.Request.Context(), models.TableUsers, row)
	if errCreate != nil {
		if errors.Is(errCreate, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		log.WithError(errCreate).Error("create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	message := "Admin user registered successfully"
	out := gin.H{
		"user": gin.H{
			"id":             id,
			"username":       username,
			"email":          row["email"],
			"role":           role,
			"is_super_admin": body.IsSuperAdmin,
		},
	}
	if twoFactor != nil {
		message += ". Please scan the QR code for 2FA."
		out["twoFactor"] = gin.H{
			"secret":     twoFactor.Secret,
			"otpauthUrl": twoFactor.OtpauthURL,
			"qrCode":     twoFactor.QRCode,
		}
	}
	out["message"] = message
	c.JSON(http.StatusCreated, out)
}

// Verify re-reads the account behind a valid token so a revoked or deleted
// user stops validating immediately.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, _ := ClaimsFrom(c)
	row, errFind := h.st.Get(c.Request.Context(), models.TableUsers, claims.UserID)
	if errFind != nil {
		storeFail(c, errFind, "User not found", "Verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(row)})
}

// ChangePassword requires the current password before accepting a new one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.CurrentPassword == "" || body.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password and new password are required"})
		return
	}

	claims, _ := ClaimsFrom(c)
	row, errFind := h.st.Get(c.Request.Context(), models.TableUsers, claims.UserID)
	if errFind != nil {
		storeFail(c, errFind, "User not found", "Password change failed")
		return
	}
	if !security.CheckPassword(util.AsString(row["password_hash"]), body.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	hash, errHash := security.HashPassword(body.NewPassword, h.bcryptCost)
	if errHash != nil {
		log.WithError(errHash).Error("hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password change failed"})
		return
	}
	if _, errUpdate := h.st.Update(c.Request.Context(), models.TableUsers, claims.UserID, store.Row{"password_hash": hash}); errUpdate != nil {
		storeFail(c, errUpdate, "User not found", "Password change failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// Logout exists for client symmetry; tokens are stateless and simply expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
