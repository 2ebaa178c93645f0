package http

import (
	"context"
	"net/http"
	"time"

	"DocLink/internal/config"
	"DocLink/internal/initial"
	"DocLink/internal/middleware/apikey"
	clientService "DocLink/internal/modules/client/application/service"
	clientPersistence "DocLink/internal/modules/client/infrastructure/persistence"
	adminHandler "DocLink/internal/modules/client/interface/http"
	ragService "DocLink/internal/modules/rag/application/service"
	"DocLink/internal/modules/rag/infrastructure/chunking"
	"DocLink/internal/modules/rag/infrastructure/embedding"
	"DocLink/internal/modules/rag/infrastructure/llm"
	"DocLink/internal/modules/rag/infrastructure/vectordb"
	ragHandler "DocLink/internal/modules/rag/interface/http"
	"DocLink/internal/modules/rag/domain/repository"
	"DocLink/pkg/ssl"
	"DocLink/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var GE *gin.Engine

func init() {
	conf := config.GetConfig()
	zlog.Init(conf.LogConfig.LogPath)

	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	if conf.MainConfig.EnableTLS {
		GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	// 向量索引：默认 milvus，memory 供无外部依赖的部署使用
	var store repository.TenantIndexStore
	if initial.MilvusClient != nil {
		ms, err := vectordb.NewMilvusStore(initial.MilvusClient, conf.VectorStoreConfig.VectorDim)
		if err != nil {
			zlog.Fatal("milvus store init failed: " + err.Error())
		}
		store = ms
	} else {
		store = vectordb.NewMemoryStore(conf.VectorStoreConfig.VectorDim)
	}

	var chunker *chunking.SentenceChunker
	var err error
	if conf.ChunkerConfig.Mode == "recursive" {
		chunker, err = chunking.NewRecursiveChunker(conf.ChunkerConfig.MaxTokens, conf.ChunkerConfig.Overlap)
	} else {
		chunker, err = chunking.NewSentenceChunker(conf.ChunkerConfig.MaxTokens, conf.ChunkerConfig.Overlap)
	}
	if err != nil {
		zlog.Fatal("chunker init failed: " + err.Error())
	}

	embedSvc, err := embedding.NewService(conf)
	if err != nil {
		zlog.Fatal("embedding service init failed: " + err.Error())
	}

	gateway, err := llm.NewGatewayFromConfig(context.Background(), conf)
	if err != nil {
		zlog.Fatal("generation gateway init failed: " + err.Error())
	}

	clientRepo := clientPersistence.NewClientRepository(initial.GormDB)
	clientSvc := clientService.NewClientService(clientRepo)
	ragSvc := ragService.NewRAGService(chunker, embedSvc, store, gateway, conf.RetrievalConfig.TopK)

	ragH := ragHandler.NewRAGHandler(ragSvc, clientSvc)
	adminH := adminHandler.NewAdminHandler(clientSvc)

	GE.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
	})

	authed := GE.Group("/")
	authed.Use(apikey.Auth(clientSvc))
	authed.POST("/upload", ragH.Upload)
	authed.POST("/upload-pdf", ragH.UploadPDF)
	authed.POST("/ask", ragH.Ask)
	authed.DELETE("/documents/:doc_id", ragH.Delete)
	authed.GET("/stats", ragH.Stats)

	admin := GE.Group("/admin")
	admin.Use(apikey.AdminAuth(conf.MainConfig.AdminAPIKey))
	admin.POST("/clients", adminH.CreateClient)
	admin.GET("/clients", adminH.ListClients)
	admin.POST("/clients/status", adminH.SetStatus)
	admin.GET("/clients/:client_id/usage", adminH.Usage)
	admin.POST("/keys", adminH.IssueKey)
	admin.DELETE("/keys/:key_id", adminH.RevokeKey)
}
