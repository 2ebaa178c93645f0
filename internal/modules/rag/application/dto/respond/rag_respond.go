package respond

// IngestResult 摄取结果，含观测用的耗时与分块数
type IngestResult struct {
	DocID          string  `json:"doc_id"`
	TenantID       string  `json:"tenant_id"`
	ChunksCreated  int     `json:"chunks_created"`
	ProcessingTime float64 `json:"processing_time"`
}

// AnswerResult 问答结果
type AnswerResult struct {
	Answer         string  `json:"answer"`
	TenantID       string  `json:"tenant_id"`
	ProcessingTime float64 `json:"processing_time"`
}

// DeleteResult 删除结果
type DeleteResult struct {
	Message string `json:"message"`
}
