package document

// Document 租户上传的一篇文档。DocID 在租户内唯一，
// 重新上传同一 DocID 会整体替换旧的分块集合。
type Document struct {
	Tenant  string
	DocID   string
	Content string
}

// Chunk 文档派生出的分块，是向量化与检索的最小单元。
// 分块 ID 格式固定为 docID_chunkIndex。
type Chunk struct {
	Tenant     string
	DocID      string
	ChunkIndex int
	Text       string
	Vector     []float32
}

// SearchHit 向量检索的单条命中结果
type SearchHit struct {
	ID      string
	DocID   string
	Content string
	Score   float32
}

// TenantStats 租户的索引统计信息
type TenantStats struct {
	TenantID       string `json:"tenant_id"`
	DocumentCount  int64  `json:"document_count"`
	CollectionName string `json:"collection_name"`
}
