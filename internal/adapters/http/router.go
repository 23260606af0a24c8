package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/adapters/signal"
	"github.com/openmeet/sfu/internal/config"
	"github.com/openmeet/sfu/internal/sfu"
)

// ClientTokenMiddleware gives every browser a stable token used as its
// participant id across signaling reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *sfu.SFU) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SFUSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	ctl := signal.NewController(orch)
	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("participant", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			ID int `json:"id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid id"})
			return
		}
		orch.CreateRoom(sfu.RoomID(req.ID))
		c.JSON(http.StatusOK, gin.H{"id": req.ID})
	})

	api.DELETE("/rooms/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		orch.DeleteRooms(sfu.RoomID(id))
		c.Status(http.StatusNoContent)
	})

	api.GET("/rooms/:id/participants", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		type participantInfo struct {
			ID      string         `json:"id"`
			AppData map[string]any `json:"appData"`
		}
		participants := orch.GetParticipants(sfu.RoomID(id))
		out := make([]participantInfo, 0, len(participants))
		for _, p := range participants {
			out = append(out, participantInfo{ID: p.ID(), AppData: p.AppData()})
		}
		c.JSON(http.StatusOK, out)
	})

	api.GET("/rooms/:id/rtp-capabilities", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		caps := orch.GetRTPCapabilities(sfu.RoomID(id))
		if caps == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
			return
		}
		c.JSON(http.StatusOK, caps)
	})

	return r
}
