package main

import (
	"BlinkMeet/config"
	"BlinkMeet/internal/broker"
	"BlinkMeet/internal/moderation"
	"BlinkMeet/internal/storage"
	"BlinkMeet/internal/utils"
	"BlinkMeet/internal/websocket"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()
	utils.Init()

	//-------------------------------------------------------
	// 1. Moderation store (memory by default, Redis optional)
	//-------------------------------------------------------
	window := time.Duration(config.C.Moderation.WindowHours) * time.Hour
	var reports moderation.Store
	if config.C.Moderation.Backend == "redis" {
		if err := storage.InitRedis(
			config.C.Redis.Addr,
			config.C.Redis.Password,
			config.C.Redis.DB,
		); err != nil {
			utils.Error.Fatalf("Redis init failed: %v", err)
		}
		reports = moderation.NewRedisStore(storage.Rdb, window)
	} else {
		reports = moderation.NewMemoryStore(window)
	}

	//-------------------------------------------------------
	// 2. Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. Hub (must start before anything delivers)
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()

	//-------------------------------------------------------
	// 4. Broker: matching + signaling state machine
	//-------------------------------------------------------
	b := broker.New(
		hub,
		reports,
		time.Duration(config.C.Match.InactivitySeconds)*time.Second,
		config.C.Moderation.ReportThreshold,
	)
	hub.OnIncoming = b.HandleIncoming
	hub.OnClosed = b.Disconnect

	//-------------------------------------------------------
	// 5. Periodic inactivity sweep
	//-------------------------------------------------------
	go func() {
		t := time.NewTicker(time.Duration(config.C.Match.SweepSeconds) * time.Second)
		defer t.Stop()
		for now := range t.C {
			if n := b.SweepInactive(now); n > 0 {
				utils.Info.Printf("sweep: removed %d inactive participants", n)
			}
		}
	}()

	//-------------------------------------------------------
	// 6. WebSocket entry + read-only endpoints
	//-------------------------------------------------------
	r.GET("/ws", websocket.ServeWS(hub))

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Stats())
	})

	// NAT traversal is the client's problem; we only hand out the list
	r.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": config.C.ICE.Servers})
	})

	//-------------------------------------------------------
	// 7. Serve
	//-------------------------------------------------------
	utils.Info.Printf("Server running on %s", config.C.Server.Port)
	r.Run(config.C.Server.Port)
}
