package payroll

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"GENBA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 給与まわりは管理者のみ
	r.POST("/payroll/generate", auth.RequireRole(auth.RoleAdmin), h.Generate)
	r.GET("/payroll/records", auth.RequireRole(auth.RoleAdmin, auth.RoleManager), h.ListByPeriod)
	r.GET("/payroll/records/:payroll_ulid", auth.RequireRole(auth.RoleAdmin, auth.RoleManager), h.Get)
	r.POST("/payroll/records/:payroll_ulid/processing", auth.RequireRole(auth.RoleAdmin), h.MarkProcessing)
	r.POST("/payroll/records/:payroll_ulid/paid", auth.RequireRole(auth.RoleAdmin), h.MarkPaid)
	r.GET("/payroll/export", auth.RequireRole(auth.RoleAdmin), h.Export)
}

func toHTTPStatus(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case ErrCodeInvalidArgument:
			return http.StatusBadRequest
		case ErrCodeNotFound:
			return http.StatusNotFound
		case ErrCodePeriodAlreadyPaid, ErrCodeConflict:
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

func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}
	res, err := h.svc.Generate(c.Request.Context(), auth.TenantID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), auth.TenantID(c), c.Param("payroll_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkProcessing(c *gin.Context) {
	res, err := h.svc.MarkProcessing(c.Request.Context(), auth.TenantID(c), c.Param("payroll_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkPaid(c *gin.Context) {
	res, err := h.svc.MarkPaid(c.Request.Context(), auth.TenantID(c), c.Param("payroll_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func periodParams(c *gin.Context) (time.Time, time.Time, bool) {
	start, err1 := time.Parse("2006-01-02", c.Query("start"))
	end, err2 := time.Parse("2006-01-02", c.Query("end"))
	if err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) ListByPeriod(c *gin.Context) {
	start, end, ok := periodParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "start and end must be YYYY-MM-DD"})
		return
	}
	res, err := h.svc.ListByPeriod(c.Request.Context(), auth.TenantID(c), start, end)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Export(c *gin.Context) {
	start, end, ok := periodParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "start and end must be YYYY-MM-DD"})
		return
	}
	data, err := h.svc.ExportCSV(c.Request.Context(), auth.TenantID(c), start, end)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="payroll.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=Shift_JIS", data)
}
