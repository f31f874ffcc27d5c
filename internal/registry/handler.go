package registry

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"GENBA-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 現場・従業員マスタは管理者のみ
	r.POST("/sites", h.CreateSite)
	r.GET("/sites", h.ListSites)
	r.GET("/sites/:site_ulid", h.GetSite)
	r.PUT("/sites/:site_ulid", h.UpdateSite)

	r.POST("/employees", h.CreateEmployee)
	r.GET("/employees", h.ListEmployees)
	r.GET("/employees/:employee_ulid", h.GetEmployee)
	r.PUT("/employees/:employee_ulid", h.UpdateEmployee)
}

func toHTTPStatus(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case ErrCodeInvalidArgument:
			return http.StatusBadRequest
		case ErrCodeNotFound:
			return http.StatusNotFound
		case ErrCodeConflict:
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

// ===== sites =====

func (h *Handler) CreateSite(c *gin.Context) {
	var req CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}
	res, err := h.svc.CreateSite(c.Request.Context(), auth.TenantID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.Header("Location", "/sites/"+res.SiteULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetSite(c *gin.Context) {
	res, err := h.svc.GetSite(c.Request.Context(), auth.TenantID(c), c.Param("site_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateSite(c *gin.Context) {
	var req UpdateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json"})
		return
	}
	res, err := h.svc.UpdateSite(c.Request.Context(), auth.TenantID(c), c.Param("site_ulid"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListSites(c *gin.Context) {
	res, err := h.svc.ListSites(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== employees =====

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json or missing required fields"})
		return
	}
	res, err := h.svc.CreateEmployee(c.Request.Context(), auth.TenantID(c), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.Header("Location", "/employees/"+res.EmployeeULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	res, err := h.svc.GetEmployee(c.Request.Context(), auth.TenantID(c), c.Param("employee_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateEmployee(c *gin.Context) {
	var req UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": ErrCodeInvalidArgument, "message": "invalid json"})
		return
	}
	res, err := h.svc.UpdateEmployee(c.Request.Context(), auth.TenantID(c), c.Param("employee_ulid"), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	activeOnly := c.Query("active") == "1" || c.Query("active") == "true"
	res, err := h.svc.ListEmployees(c.Request.Context(), auth.TenantID(c), activeOnly)
	if err != nil {
		c.JSON(toHTTPStatus(err), errBody(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
