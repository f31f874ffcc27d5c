package contestation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"GENBA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 異議の提起は顧客、確定は管理者
	r.POST("/contestations", auth.RequireRole(auth.RoleClient, auth.RoleAdmin), h.Open)
	r.POST("/contestations/:contestation_ulid/resolve", auth.RequireRole(auth.RoleManager, auth.RoleAdmin), h.Resolve)

	r.GET("/contestations", auth.RequireRole(auth.RoleManager, auth.RoleAdmin), h.List)
	r.GET("/contestations/:contestation_ulid", h.Get)
	r.GET("/attendance/records/:record_ulid/contestations", h.ListByRecord)
}

func toHTTPStatus(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case ErrCodeInvalidArgument:
			return http.StatusBadRequest
		case ErrCodeNotFound:
			return http.StatusNotFound
		case ErrCodeRecordNotApproved, ErrCodeDuplicateContestation, ErrCodeNotPending:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func errBody(err error) gin.H {
	var de *DomainError
	if errors.As(err, &de) {
		return gin.H{"code": de.Code, "message": de.Message}
	}
	return gin.H{"code": ErrCodeInternal, "message": "internal error"}
}

func (h *Handler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}
	res, err := h.svc.Open(c.Request.Context(), auth.TenantID(c), auth.UserID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.Header("Location", "/contestations/"+res.ContestationULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}
	res, err := h.svc.Resolve(c.Request.Context(), auth.TenantID(c), auth.UserID(c), c.Param("contestation_ulid"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), auth.TenantID(c), c.Param("contestation_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var status *Status
	if v := c.Query("status"); v != "" {
		st := Status(v)
		status = &st
	}
	res, err := h.svc.List(c.Request.Context(), auth.TenantID(c), status)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListByRecord(c *gin.Context) {
	res, err := h.svc.ListByRecord(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
