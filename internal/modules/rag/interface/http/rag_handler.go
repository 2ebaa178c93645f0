package http

import (
	"io"
	"strings"
	"time"

	aiRequest "DocLink/internal/modules/rag/application/dto/request"
	"DocLink/internal/modules/rag/application/dto/respond"
	"DocLink/internal/modules/rag/application/service"
	clientService "DocLink/internal/modules/client/application/service"
	"DocLink/pkg/back"
	"DocLink/pkg/pdfutil"
	"DocLink/pkg/xerr"
	"DocLink/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RAGHandler 文档上传 / 问答 / 删除 / 统计的 HTTP Handler。
// 租户身份由 apikey 中间件写入 context，请求体中的 client_id
// 必须与之一致，防止持 A 的 key 操作 B 的数据。
type RAGHandler struct {
	ragSvc    service.RAGService
	clientSvc clientService.ClientService
}

func NewRAGHandler(ragSvc service.RAGService, clientSvc clientService.ClientService) *RAGHandler {
	return &RAGHandler{ragSvc: ragSvc, clientSvc: clientSvc}
}

func (h *RAGHandler) tenantFrom(c *gin.Context, bodyClientID string) (string, bool) {
	tenant := strings.TrimSpace(c.GetString("client_id"))
	if tenant == "" {
		back.Error(c, xerr.Unauthorized, xerr.ErrAPIKeyRequired.Message)
		return "", false
	}
	if bodyClientID != "" && bodyClientID != tenant {
		back.Error(c, xerr.Forbidden, xerr.ErrClientMismatch.Message)
		return "", false
	}
	return tenant, true
}

// Upload 处理文本文档上传
//
// 路由: POST /upload
func (h *RAGHandler) Upload(c *gin.Context) {
	var req aiRequest.UploadRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	tenant, ok := h.tenantFrom(c, req.ClientID)
	if !ok {
		return
	}
	if err := h.checkLimits(c, tenant); err != nil {
		return
	}

	data, err := h.ragSvc.Ingest(c.Request.Context(), tenant, req.DocID, req.Content)
	if err == nil {
		h.clientSvc.TrackUsage(c.Request.Context(), tenant, clientService.UsageDocument)
	}
	back.Result(c, data, err)
}

// UploadPDF 处理 PDF 上传，先抽取纯文本再走同一条摄取路径
//
// 路由: POST /upload-pdf (multipart: file, doc_id, client_id)
func (h *RAGHandler) UploadPDF(c *gin.Context) {
	tenant, ok := h.tenantFrom(c, strings.TrimSpace(c.PostForm("client_id")))
	if !ok {
		return
	}
	if err := h.checkLimits(c, tenant); err != nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		back.Error(c, xerr.BadRequest, "missing pdf file")
		return
	}
	docID := strings.TrimSpace(c.PostForm("doc_id"))
	if docID == "" {
		docID = fileHeader.Filename
	}

	f, err := fileHeader.Open()
	if err != nil {
		back.Error(c, xerr.BadRequest, "unreadable pdf file")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		back.Error(c, xerr.BadRequest, "unreadable pdf file")
		return
	}

	text, err := pdfutil.ExtractText(raw)
	if err != nil {
		zlog.Warn("pdf extraction failed", zap.String("tenant", tenant), zap.Error(err))
		back.Error(c, xerr.BadRequest, "failed to extract text from pdf")
		return
	}

	data, err := h.ragSvc.Ingest(c.Request.Context(), tenant, docID, text)
	if err == nil {
		h.clientSvc.TrackUsage(c.Request.Context(), tenant, clientService.UsageDocument)
	}
	back.Result(c, data, err)
}

// Ask 处理问答请求。Answer 永不返回错误，这里总是 200。
//
// 路由: POST /ask
func (h *RAGHandler) Ask(c *gin.Context) {
	var req aiRequest.AskRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	tenant, ok := h.tenantFrom(c, req.ClientID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		back.Error(c, xerr.BadRequest, xerr.ErrEmptyInput.Message)
		return
	}
	if err := h.checkLimits(c, tenant); err != nil {
		return
	}

	start := time.Now()
	answer := h.ragSvc.Answer(c.Request.Context(), tenant, req.Query)
	h.clientSvc.TrackUsage(c.Request.Context(), tenant, clientService.UsageRequest)

	back.Success(c, &respond.AnswerResult{
		Answer:         answer,
		TenantID:       tenant,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

// Delete 删除文档，幂等
//
// 路由: DELETE /documents/:doc_id
func (h *RAGHandler) Delete(c *gin.Context) {
	tenant, ok := h.tenantFrom(c, "")
	if !ok {
		return
	}
	data, err := h.ragSvc.Delete(c.Request.Context(), tenant, c.Param("doc_id"))
	back.Result(c, data, err)
}

// Stats 返回租户索引统计
//
// 路由: GET /stats
func (h *RAGHandler) Stats(c *gin.Context) {
	tenant, ok := h.tenantFrom(c, "")
	if !ok {
		return
	}
	data, err := h.ragSvc.Stats(c.Request.Context(), tenant)
	back.Result(c, data, err)
}

func (h *RAGHandler) checkLimits(c *gin.Context, tenant string) error {
	ok, msg, err := h.clientSvc.CheckLimits(c.Request.Context(), tenant)
	if err != nil {
		zlog.Error("limit check failed", zap.String("tenant", tenant), zap.Error(err))
		back.Error(c, xerr.InternalServerError, xerr.ErrServerError.Message)
		return err
	}
	if !ok {
		back.Error(c, xerr.TooManyRequests, xerr.ErrLimitExceeded.Message+": "+msg)
		return xerr.ErrLimitExceeded
	}
	return nil
}
