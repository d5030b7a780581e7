package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presencegate/internal/apperr"
	"presencegate/internal/attendance"
	"presencegate/internal/queue"
	"presencegate/internal/registration"
)

type markRequest struct {
	RollNumber      string                  `json:"rollNumber"`
	FaceData        string                  `json:"faceData"`
	FingerprintData string                  `json:"fingerprintData"`
	SSID            string                  `json:"ssid"`
	MAC             string                  `json:"mac"`
	Latitude        registration.Coordinate `json:"latitude"`
	Longitude       registration.Coordinate `json:"longitude"`
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	start := time.Now()
	defer func() { h.Metrics.MarkDuration.Observe(time.Since(start).Seconds()) }()

	var body markRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.markFailed(c, badBody(err))
		return
	}
	lat, err := registration.ParseCoordinate(body.Latitude, "latitude")
	if err != nil {
		h.markFailed(c, err)
		return
	}
	lng, err := registration.ParseCoordinate(body.Longitude, "longitude")
	if err != nil {
		h.markFailed(c, err)
		return
	}
	if lat == nil || lng == nil {
		h.markFailed(c, apperr.Validation(apperr.ReasonInvalidCoordinate, "latitude and longitude are required"))
		return
	}

	res, err := h.Pipeline.MarkAttendance(c.Request.Context(), attendance.MarkRequest{
		RollNumber:      body.RollNumber,
		FaceData:        body.FaceData,
		FingerprintData: body.FingerprintData,
		SSID:            body.SSID,
		MAC:             body.MAC,
		Latitude:        *lat,
		Longitude:       *lng,
	})
	if err != nil {
		h.markFailed(c, err)
		return
	}

	if res.Duplicate {
		h.Metrics.MarkOutcomes.WithLabelValues("duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Attendance already marked", "attendance": res.Event, "duplicate": true})
		return
	}

	h.Metrics.MarkOutcomes.WithLabelValues("accepted").Inc()
	h.publish(c.Request.Context(), queue.TypeAttendanceMarked, body.RollNumber, gin.H{
		"event_id":    res.Event.ID,
		"identity_id": res.Event.IdentityID,
		"roll_number": body.RollNumber,
		"marked_at":   res.Event.MarkedAt,
		"ssid":        res.Event.SSID,
		"mac":         res.Event.MAC,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Attendance marked", "attendance": res.Event})
}

func (h *Handler) markFailed(c *gin.Context, err error) {
	h.Metrics.MarkOutcomes.WithLabelValues(apperr.ReasonOf(err)).Inc()
	h.writeError(c, err)
}

func (h *Handler) AttendanceHistory(c *gin.Context) {
	profile, events, err := h.History.ForRoll(c.Request.Context(), c.Param("rollNumber"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile, "attendance": events})
}

func (h *Handler) AttendanceStats(c *gin.Context) {
	st, err := h.History.Stats(c.Request.Context(), c.Param("rollNumber"), time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
