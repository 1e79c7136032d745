package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/challenge"
	"github.com/hiveboardgame/realtime/internal/hive"
	"github.com/hiveboardgame/realtime/internal/presence"
	"github.com/hiveboardgame/realtime/internal/router"
	"github.com/hiveboardgame/realtime/internal/ws"
)

// handleWebSocket upgrades the request to a websocket, optionally
// authenticates it from a `token` query param, and blocks on the
// connection's read pump until it disconnects — grounded on the
// teacher's HandleWebSocket (internal/server/websocket/websocket.go),
// generalized from a single authenticated Client map to an
// anonymous-or-authenticated Connection registered with the Fabric
// (spec §4.D: "anonymous connections are allowed for spectate-only").
func (s *Server) handleWebSocket(c *gin.Context) {
	var claims struct {
		userID, username string
		isBot, isAdmin   bool
		authed           bool
	}

	if token := c.Query("token"); token != "" {
		parsed, err := s.auth.ValidateToken(token)
		if err == nil {
			acc, err := s.store.GetAccount(c.Request.Context(), parsed.UserID)
			if err == nil {
				claims.userID = acc.ID
				claims.username = acc.Username
				claims.isBot = parsed.IsBot
				claims.isAdmin = parsed.IsAdmin
				claims.authed = true
			}
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	wsConn := ws.New(conn)
	if claims.authed {
		wsConn.Authenticate(claims.userID, claims.username, claims.isBot, claims.isAdmin)
	}

	s.fabric.Register(wsConn)

	var wasFirstTab bool
	if claims.authed {
		wasFirstTab = s.presence.AddTab(presence.Account{
			ID: claims.userID, Username: claims.username, IsBot: claims.isBot, IsAdmin: claims.isAdmin,
		})
		if wasFirstTab {
			router.Deliver(s.fabric, userStatusNotification(claims.userID, claims.username, true))
		}
	}

	go wsConn.WritePump()
	wsConn.ReadPump(s.router.Dispatch)

	s.fabric.Unregister(wsConn)
	s.subs.UnsubscribeAll(wsConn)
	if claims.authed {
		if s.presence.RemoveTab(claims.userID) {
			router.Deliver(s.fabric, userStatusNotification(claims.userID, claims.username, false))
		}
	}
}

// userStatusNotification builds the Global presence-change
// notification the websocket handshake fires on a tab-count 0<->1
// crossing (spec §3/§4.C).
func userStatusNotification(userID, username string, online bool) []broadcast.Notification {
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
		Message:  router.UserStatus{UserID: userID, Username: username, Online: online},
	}}
}

// challengeAcceptedNotifications adapts challenge.BroadcastAccepted
// for the REST bot-accept path, which doesn't go through
// internal/router's normal dispatch.
func challengeAcceptedNotifications(res *challenge.AcceptResult) []broadcast.Notification {
	return challenge.BroadcastAccepted(res)
}

// handleBotToken exchanges a bot account's email+password for a
// session token (original_source/apis/src/api/v1/auth/get_token_handler.rs:
// human accounts never hit this, only bots, which are provisioned
// directly in the database).
func (s *Server) handleBotToken(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	acc, err := s.store.GetAccountByEmail(c.Request.Context(), req.Email)
	if err != nil || acc.PasswordHash == "" || !s.auth.CheckPassword(req.Password, acc.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}

	token, err := s.auth.GenerateToken(acc.ID, acc.IsBot, acc.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": token}})
}

// botAuthMiddleware requires the same bearer session token the
// websocket handshake accepts as a query param, restricted to bot
// accounts — the REST equivalent of the Rust apis' `Auth(email)` extractor.
func (s *Server) botAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(authz) <= len(prefix) || authz[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing token"})
			return
		}
		claims, err := s.auth.ValidateToken(authz[len(prefix):])
		if err != nil || !claims.IsBot {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		c.Set("bot_id", claims.UserID)
		c.Next()
	}
}

// handleBotChallenges lists every Direct challenge targeting the
// authenticated bot (`GET /api/v1/bot/challenges`).
func (s *Server) handleBotChallenges(c *gin.Context) {
	botID := c.GetString("bot_id")
	challenges, err := s.challenges.GetForOpponent(c.Request.Context(), botID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "data": gin.H{"error": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"bot": botID, "challenges": challenges}})
}

// handleBotAcceptChallenge accepts a Direct challenge on behalf of the
// bot (`GET /api/v1/bot/challenge/accept/:id`, kept a GET to mirror
// the original Rust route it's grounded on).
func (s *Server) handleBotAcceptChallenge(c *gin.Context) {
	botID := c.GetString("bot_id")
	res, err := s.challenges.Accept(c.Request.Context(), c.Param("id"), botID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "data": gin.H{"error": err.Error()}})
		return
	}
	router.Deliver(s.fabric, challengeAcceptedNotifications(res))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"bot": botID, "game": res.Game}})
}

// handleBotPlay plays a single turn for the bot
// (`POST /api/v1/bot/games/play`).
func (s *Server) handleBotPlay(c *gin.Context) {
	botID := c.GetString("bot_id")
	var req struct {
		GameID   string `json:"game_id"`
		Piece    string `json:"piece"`
		Position string `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	notifications, err := s.games.Turn(c.Request.Context(), req.GameID, botID, hive.Move{Piece: req.Piece, Position: req.Position})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "data": gin.H{"error": err.Error()}})
		return
	}
	router.Deliver(s.fabric, notifications)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"bot": botID}})
}

// handleListChallenges is the lobby snapshot query a freshly loaded
// client page uses before opening its websocket (`GET /api/challenges`).
func (s *Server) handleListChallenges(c *gin.Context) {
	challenges, err := s.challenges.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, challenges)
}

// handleListTournaments is the lobby snapshot query for tournaments
// (`GET /api/tournaments`).
func (s *Server) handleListTournaments(c *gin.Context) {
	tournaments, err := s.tournaments.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tournaments)
}

// handleGetTournament fetches a single tournament by id
// (`GET /api/tournaments/:id`), for a shareable tournament link.
func (s *Server) handleGetTournament(c *gin.Context) {
	t, err := s.tournaments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, t)
}

