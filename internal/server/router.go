package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/quicksend/quicksend/internal/auth"
	"github.com/quicksend/quicksend/internal/config"
	"github.com/quicksend/quicksend/internal/file"
	"github.com/quicksend/quicksend/internal/metrics"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	DB          *pgxpool.Pool
	ObjectStore *minio.Client
	AuthService *auth.Service
	FileDeps    file.HandlerDeps
}

// NewRouter builds a Gin engine with foundational middleware and routes.
// Share-token endpoints stay public; upload, listing and deletion sit behind
// the auth middleware.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))
		auth.RegisterProtectedRoutes(protected, deps.AuthService)

		if deps.FileDeps.Service != nil {
			file.RegisterRoutes(api, protected, deps.FileDeps)
		}
	}

	return router
}
