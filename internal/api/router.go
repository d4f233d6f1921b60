package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/lineage/internal/api/handlers"
	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/internal/queue"
	"github.com/your-org/lineage/internal/storage"
)

type RouterConfig struct {
	APIKey     string
	DB         *storage.PostgresStore
	Media      *storage.MediaStore
	Producer   *queue.Producer
	Service    *faces.Service
	Searcher   *faces.Searcher
	Reconciler *faces.Reconciler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Media, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (service key + user principal)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.Use(auth.PrincipalMiddleware())

	// Face records
	faceH := handlers.NewFaceHandler(cfg.Service, cfg.Media)
	v1.POST("/members/:id/faces", auth.RequireAuth(), faceH.Create)
	v1.POST("/members/:id/faces/detect", auth.RequireAuth(), faceH.Detect)
	v1.GET("/faces/:id", faceH.Get)
	v1.PATCH("/faces/:id", auth.RequireAuth(), faceH.Update)
	v1.DELETE("/faces/:id", auth.RequireAuth(), faceH.Delete)
	v1.GET("/faces/:id/thumbnail", faceH.Thumbnail)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Searcher)
	v1.POST("/search/faces/similar", searchH.Similar)
	v1.POST("/search/faces/similar/batch", searchH.SimilarBatch)
	v1.GET("/search/faces", searchH.Attributes)

	// Administration
	adminH := handlers.NewAdminHandler(cfg.Reconciler)
	v1.POST("/admin/reconcile", auth.RequireAuth(), adminH.Reconcile)

	return r
}
