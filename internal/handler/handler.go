package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presencegate/internal/account"
	"presencegate/internal/apperr"
	"presencegate/internal/attendance"
	"presencegate/internal/device"
	"presencegate/internal/metrics"
	"presencegate/internal/queue"
	"presencegate/internal/registration"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// Deps are the services the HTTP layer delegates to.
type Deps struct {
	Pipeline     *attendance.Pipeline
	History      *attendance.History
	Registration *registration.Service
	Devices      *device.Service
	Accounts     *account.Service
	Queue        queue.Queue
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Health       []HealthCheck
}

// Handler serves the gateway's HTTP API.
type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewUnregistered()
	}
	return &Handler{Deps: d}
}

// Routes mounts every endpoint on r. bearer guards the account mutations.
func (h *Handler) Routes(r gin.IRouter, bearer gin.HandlerFunc) {
	r.GET("/ping", h.Ping)
	r.GET("/healthz", h.Healthz)

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.POST("/device/register", h.RegisterDevice)
	r.GET("/devices/:rollNumber", h.ListDevices)

	r.POST("/attendance/mark", h.MarkAttendance)
	r.GET("/attendance/:rollNumber", h.AttendanceHistory)
	r.GET("/attendance/:rollNumber/stats", h.AttendanceStats)

	authed := r.Group("/", bearer)
	authed.PATCH("/profile", h.UpdateProfile)
	authed.POST("/change-password", h.ChangePassword)
	authed.DELETE("/delete", h.DeleteAccount)
}

func (h *Handler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, hc := range h.Health {
		ok := hc.Check(c.Request.Context())
		body[hc.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindStorage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "reason"} with the status of its kind.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "reason": apperr.ReasonOf(err)})
}

func badBody(err error) error {
	return apperr.Validation(apperr.ReasonBadRequest, "invalid request body: "+err.Error())
}

// publish emits a domain event. Failures are counted and logged but never fail the request.
func (h *Handler) publish(ctx context.Context, typ, key string, payload any) {
	if h.Queue == nil {
		return
	}
	msg, err := queue.NewMessage(typ, key, payload)
	if err == nil {
		err = h.Queue.Publish(ctx, msg)
	}
	if err != nil {
		h.Metrics.QueuePublishFail.Inc()
		h.Logger.Warn("queue publish failed", zap.String("type", typ), zap.String("key", key), zap.Error(err))
	}
}
