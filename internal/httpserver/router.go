package httpserver

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/auth"
	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/policy"
)

// New builds the engine: ambient middleware, then every registry route
// mounted behind its declared guard chain.
func New(db *gorm.DB, cfg config.Config, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger))

	Mount(r, db, cfg, logger, Routes(db, cfg, logger))
	return r
}

// Mount wires a route table into gin. The guard chain is derived from
// the route's declaration, so a route cannot be registered with less
// protection than its registry entry states.
func Mount(r *gin.Engine, db *gorm.DB, cfg config.Config, logger *zap.Logger, routes []Route) {
	resolver := policy.Resolver{DB: db}
	authMW := auth.JWT(db, cfg.JWTSecret)

	for _, rt := range routes {
		chain := make([]gin.HandlerFunc, 0, 4)
		if !rt.Public {
			chain = append(chain, authMW)
		}
		if rt.Resource != "" {
			chain = append(chain, Authorize(resolver, logger, rt.Resource, rt.Action))
		}
		if rt.ObjectScope {
			chain = append(chain, RequireObjectScope(db, logger, rt.Target))
		}
		chain = append(chain, rt.Handler)

		r.Handle(rt.Method, rt.Path, chain...)
	}
}
