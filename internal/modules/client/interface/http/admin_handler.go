package http

import (
	"DocLink/internal/modules/client/application/service"
	"DocLink/pkg/back"
	"DocLink/pkg/xerr"
	"DocLink/pkg/zlog"

	"github.com/gin-gonic/gin"
)

// AdminHandler 租户管理后台接口，由 admin key 中间件保护
type AdminHandler struct {
	clientSvc service.ClientService
}

func NewAdminHandler(clientSvc service.ClientService) *AdminHandler {
	return &AdminHandler{clientSvc: clientSvc}
}

type createClientRequest struct {
	CompanyName  string `json:"company_name"`
	ContactEmail string `json:"contact_email"`
	ContactName  string `json:"contact_name"`
	PlanType     string `json:"plan_type"`
}

type issueKeyRequest struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
}

type setStatusRequest struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// CreateClient 路由: POST /admin/clients
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	client, apiKey, err := h.clientSvc.CreateClient(c.Request.Context(), req.CompanyName, req.ContactEmail, req.ContactName, req.PlanType)
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Success(c, gin.H{"client": client, "api_key": apiKey})
}

// ListClients 路由: GET /admin/clients
func (h *AdminHandler) ListClients(c *gin.Context) {
	clients, err := h.clientSvc.ListClients(c.Request.Context())
	back.Result(c, clients, err)
}

// SetStatus 路由: POST /admin/clients/status
func (h *AdminHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.BindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.clientSvc.SetClientStatus(c.Request.Context(), req.ClientID, req.Status)
	back.Result(c, gin.H{"client_id": req.ClientID, "status": req.Status}, err)
}

// IssueKey 路由: POST /admin/keys
func (h *AdminHandler) IssueKey(c *gin.Context) {
	var req issueKeyRequest
	if err := c.BindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	key, err := h.clientSvc.IssueAPIKey(c.Request.Context(), req.ClientID, req.Name)
	back.Result(c, key, err)
}

// RevokeKey 路由: DELETE /admin/keys/:key_id
func (h *AdminHandler) RevokeKey(c *gin.Context) {
	err := h.clientSvc.RevokeAPIKey(c.Request.Context(), c.Param("key_id"))
	back.Result(c, gin.H{"key_id": c.Param("key_id")}, err)
}

// Usage 路由: GET /admin/clients/:client_id/usage
func (h *AdminHandler) Usage(c *gin.Context) {
	stats, err := h.clientSvc.GetUsageStats(c.Request.Context(), c.Param("client_id"))
	back.Result(c, stats, err)
}
