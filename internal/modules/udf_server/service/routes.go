package service

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter mounts the UDF endpoints under /udf.
func NewRouter(h *Handler, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(origins)))

	udf := r.Group("/udf")
	{
		udf.GET("/config", h.Config)
		udf.GET("/search", h.Search)
		udf.GET("/symbols", h.Symbols)
		udf.GET("/history", h.History)
		udf.GET("/time", h.Time)
		udf.GET("/symbols_list", h.SymbolsList)
		udf.POST("/bars", h.Ingest)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
