package main

import (
	"flag"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snvindex"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	db := flag.String("db", "", "path to the badger store directory")
	configPath := flag.String("config", "snv-config.yaml", "path to the store config")
	debug := flag.Bool("debug", false, "enable gin debug mode")
	flag.Parse()

	if *db == "" {
		log.Fatal("-db is required")
	}
	snvindex.Verbose = *debug

	cfg, err := snvindex.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	persistence, err := snvindex.OpenBadgerPersistence(snvindex.BadgerOptions{Path: *db})
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer persistence.Close()

	metrics := snvindex.NewMetrics()
	engine, err := snvindex.NewEngine(cfg, persistence, metrics)
	if err != nil {
		log.Fatalf("building engine: %v", err)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}

	registerRoutes(router, engine, metrics)

	addr := ":" + strconv.Itoa(*port)
	log.Printf("listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// registerRoutes wires the thin demo REST surface onto engine, per
// spec.md §1's out-of-scope full REST layer: this exposes enough to
// exercise the Engine facade, not the complete §6.2 method set.
func registerRoutes(router *gin.Engine, engine *snvindex.Engine, metrics *snvindex.Metrics) {
	router.GET("/guids", func(c *gin.Context) {
		guids, err := engine.Guids(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"guids": guids})
	})

	router.GET("/:guid/neighbours_within/:threshold", func(c *gin.Context) {
		guid := c.Param("guid")
		threshold, err := strconv.Atoi(c.Param("threshold"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be an integer"})
			return
		}
		records := engine.NeighboursWithin(c.Request.Context(), guid, threshold, 0, snvindex.FormatWithDistance)
		c.JSON(http.StatusOK, gin.H{"neighbours": records})
	})

	router.POST("/insert", func(c *gin.Context) {
		var req struct {
			Guid     string         `json:"guid" binding:"required"`
			Sequence string         `json:"sequence" binding:"required"`
			Meta     map[string]any `json:"meta"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := engine.Insert(c.Request.Context(), req.Guid, req.Sequence, req.Meta)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
}
