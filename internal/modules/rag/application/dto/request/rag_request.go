package request

// UploadRequest 上传文本文档
type UploadRequest struct {
	ClientID string `json:"client_id"`
	DocID    string `json:"doc_id"`
	Content  string `json:"content"`
}

// AskRequest 基于已上传文档提问
type AskRequest struct {
	ClientID string `json:"client_id"`
	Query    string `json:"query"`
}
