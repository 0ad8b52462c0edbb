package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facepos/internal/api/handlers"
	"github.com/your-org/facepos/internal/api/ws"
	"github.com/your-org/facepos/internal/auth"
	"github.com/your-org/facepos/internal/catalog"
	"github.com/your-org/facepos/internal/enroll"
	"github.com/your-org/facepos/internal/pos"
	"github.com/your-org/facepos/internal/queue"
	"github.com/your-org/facepos/internal/session"
	"github.com/your-org/facepos/internal/signature"
	"github.com/your-org/facepos/internal/storage"
)

type RouterConfig struct {
	APIKey     string
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *queue.Producer
	Hub        *ws.Hub
	Scans      *session.Manager
	Catalog    *catalog.Catalog
	Controller *pos.Controller
	Enroller   *enroll.Service
	// SignatureFn extracts a face signature from image bytes (from the
	// recognition models).
	SignatureFn func(imageData []byte) (signature.Signature, error)

	SearchThreshold float64
	SearchLimit     int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Capture sessions
	scanH := handlers.NewScanHandler(cfg.Scans)
	v1.POST("/scans", scanH.Start)
	v1.DELETE("/scans/:id", scanH.Cancel)
	v1.GET("/scans/active", scanH.Active)

	// Identities
	identityH := handlers.NewIdentityHandler(cfg.DB, cfg.MinIO, cfg.Enroller, cfg.SearchThreshold, cfg.SearchLimit)
	identityH.SignatureFn = cfg.SignatureFn
	v1.POST("/identities", identityH.Enroll)
	v1.GET("/identities", identityH.List)
	v1.GET("/identities/:id", identityH.Get)
	v1.PUT("/identities/:id/contact", identityH.UpdateContact)
	v1.DELETE("/identities/:id", identityH.Delete)
	v1.GET("/identities/:id/thumbnail", identityH.Thumbnail)
	v1.POST("/search", identityH.Search)

	// Point of sale
	posH := handlers.NewPOSHandler(cfg.Catalog, cfg.Controller, cfg.DB)
	v1.GET("/products", posH.Products)
	v1.GET("/cart", posH.Cart)
	v1.POST("/cart", posH.AddToCart)
	v1.PUT("/cart/:productId", posH.SetQuantity)
	v1.DELETE("/cart", posH.ClearCart)
	v1.POST("/cart/reorder", posH.Reorder)
	v1.POST("/checkout", posH.Checkout)
	v1.GET("/orders", posH.Orders)
	v1.GET("/recommendations", posH.Recommendations)
	v1.GET("/session", posH.Session)
	v1.POST("/session/:id", posH.SignIn)
	v1.DELETE("/session", posH.SignOut)

	return r
}
