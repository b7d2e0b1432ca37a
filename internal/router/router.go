package router

import (
	"time"

	"fleetdispatch/internal/config"
	"fleetdispatch/internal/handler"
	"fleetdispatch/internal/middleware"
	"fleetdispatch/internal/repository"
	"fleetdispatch/internal/service"
	"fleetdispatch/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(300, time.Minute)) // 300 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	itemRepo := repository.NewItemRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	planRepo := repository.NewPlanRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	dispatchSvc := service.NewDispatchService(itemRepo, vehicleRepo, routeRepo, planRepo, cfg, rdb, dispatcher)
	planSvc := service.NewPlanService(planRepo, vehicleRepo, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	dispatchH := handler.NewDispatchHandler(dispatchSvc)
	plansH := handler.NewPlansHandler(planSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb))

	v1 := r.Group("/v1")
	{
		v1.POST("/dispatch", dispatchH.Run)
		v1.GET("/dispatch/idle-units", dispatchH.IdleUnits)

		plans := v1.Group("/plans")
		{
			plans.GET("/:id", plansH.Get)
			plans.POST("/:id/units", plansH.AttachUnits)
			plans.POST("/:id/move-item", plansH.MoveItem)
			plans.DELETE("/:id", plansH.Rollback)
			plans.GET("/:id/manifest", plansH.Manifest)
		}
	}

	return r
}
