package attendance

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"GENBA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 打刻（作業員・管理者）
	r.POST("/attendance/check-in", auth.RequireRole(auth.RoleWorker, auth.RoleManager, auth.RoleAdmin), h.CheckIn)
	r.POST("/attendance/records/:record_ulid/check-out", auth.RequireRole(auth.RoleWorker, auth.RoleManager, auth.RoleAdmin), h.CheckOut)

	// レビュー（管理者のみ）
	r.POST("/attendance/records/:record_ulid/approve", auth.RequireRole(auth.RoleManager, auth.RoleAdmin), h.Approve)
	r.POST("/attendance/records/:record_ulid/reject", auth.RequireRole(auth.RoleManager, auth.RoleAdmin), h.Reject)

	// 顧客確認印
	r.POST("/attendance/records/:record_ulid/client-validation", auth.RequireRole(auth.RoleClient), h.ClientValidate)

	r.GET("/attendance/records", h.List)
	r.GET("/attendance/records/:record_ulid", h.Get)
}

func toHTTPStatus(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case ErrCodeInvalidArgument, ErrCodeInvalidTimeOrder:
			return http.StatusBadRequest
		case ErrCodeNotFound:
			return http.StatusNotFound
		case ErrCodeDuplicateOpenRecord, ErrCodeNotOpen, ErrCodeNotPending, ErrCodeOpenContestation:
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

func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}

	// worker アカウントは自分の従業員IDでしか打刻できない
	if auth.Role(c) == auth.RoleWorker {
		own := auth.EmployeeULID(c)
		if own == "" || own != req.EmployeeULID {
			c.JSON(http.StatusForbidden, gin.H{"code": ErrCodeInvalidArgument, "message": "cannot check in for another employee"})
			return
		}
	}

	res, err := h.svc.CheckIn(c.Request.Context(), auth.TenantID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.Header("Location", "/attendance/records/"+res.RecordULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CheckOut(c *gin.Context) {
	var req CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json"})
		return
	}
	res, err := h.svc.CheckOut(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Approve(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// ボディなしの承認も許す
		req = ReviewRequest{}
	}
	res, err := h.svc.Approve(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"), auth.UserID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Reject(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json"})
		return
	}
	res, err := h.svc.Reject(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"), auth.UserID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ClientValidate(c *gin.Context) {
	res, err := h.svc.ClientValidate(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), auth.TenantID(c), c.Param("record_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if v := c.Query("employee_ulid"); v != "" {
		q.EmployeeULID = &v
	}
	if v := c.Query("site_ulid"); v != "" {
		q.SiteULID = &v
	}
	if v := c.Query("status"); v != "" {
		st := Status(v)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid status"})
			return
		}
		q.Status = &st
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.To = &t
		}
	}
	q.Limit = atoiDef(c.Query("limit"), DefaultPageLimit)
	q.Offset = atoiDef(c.Query("offset"), 0)

	items, total, err := h.svc.List(c.Request.Context(), auth.TenantID(c), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
