package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presencegate/internal/account"
	"presencegate/internal/apperr"
	"presencegate/internal/auth"
	"presencegate/internal/queue"
	"presencegate/internal/registration"
)

// Register responds with the enrollment envelope {status, message, code} on failure.
func (h *Handler) Register(c *gin.Context) {
	var fields registration.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.registerFailed(c, badBody(err))
		return
	}

	profile, err := h.Registration.Register(c.Request.Context(), fields)
	if err != nil {
		h.registerFailed(c, err)
		return
	}

	h.Metrics.Registrations.WithLabelValues("success").Inc()
	h.publish(c.Request.Context(), queue.TypeUserRegistered, profile.RollNumber, gin.H{
		"identity_id": profile.ID,
		"roll_number": profile.RollNumber,
		"department":  profile.Department,
	})
	c.JSON(http.StatusCreated, gin.H{"status": "success", "user": profile})
}

func (h *Handler) registerFailed(c *gin.Context, err error) {
	h.Metrics.Registrations.WithLabelValues(apperr.ReasonOf(err)).Inc()
	status := statusFor(apperr.KindOf(err))
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("registration failed", zap.Error(err))
		msg = "internal error"
	}
	c.JSON(status, gin.H{"status": "error", "message": msg, "code": apperr.ReasonOf(err)})
}

type deviceRequest struct {
	RollNumber string `json:"rollNumber"`
	MAC        string `json:"mac"`
	DeviceID   string `json:"deviceId"`
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var body deviceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	binding, err := h.Devices.Register(c.Request.Context(), body.RollNumber, body.MAC, body.DeviceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.Metrics.DevicesBound.Inc()
	h.publish(c.Request.Context(), queue.TypeDeviceRegistered, body.RollNumber, gin.H{
		"binding_id":  binding.ID,
		"identity_id": binding.IdentityID,
		"mac":         binding.MAC,
	})
	c.JSON(http.StatusCreated, gin.H{"device": binding})
}

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.Devices.List(c.Request.Context(), c.Param("rollNumber"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	sess, err := h.Accounts.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody("Login successful", sess))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	var body refreshRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	sess, err := h.Accounts.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionBody("Token refreshed", sess))
}

func sessionBody(message string, sess account.Session) gin.H {
	return gin.H{
		"message":       message,
		"user":          sess.User,
		"access_token":  sess.Tokens.AccessToken,
		"refresh_token": sess.Tokens.RefreshToken,
		"expires_at":    sess.Tokens.AccessExp.Unix(),
	}
}

type profileRequest struct {
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var body profileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	p, _ := auth.PrincipalFrom(c)
	profile, err := h.Accounts.UpdateProfile(c.Request.Context(), p, body.RollNumber, body.Name, body.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": profile})
}

type passwordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var body passwordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	p, _ := auth.PrincipalFrom(c)
	if err := h.Accounts.ChangePassword(c.Request.Context(), p, body.Email, body.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

type deleteRequest struct {
	Email      string `json:"email"`
	RollNumber string `json:"rollNumber"`
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	var body deleteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, badBody(err))
		return
	}
	p, _ := auth.PrincipalFrom(c)
	deleted, err := h.Accounts.DeleteAccount(c.Request.Context(), p, body.Email, body.RollNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.publish(c.Request.Context(), queue.TypeAccountDeleted, deleted.RollNumber, gin.H{
		"identity_id": deleted.ID,
		"roll_number": deleted.RollNumber,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted", "user": deleted})
}
