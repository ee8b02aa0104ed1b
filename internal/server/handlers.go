package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/Cyclone1070/sidecar/internal/chat"
	"github.com/Cyclone1070/sidecar/internal/mcp"
	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	ConversationID string   `json:"conversation_id"`
	Message        string   `json:"message" binding:"required"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	Temperature    *float64 `json:"temperature"`
	SystemPrompt   string   `json:"system_prompt"`
	Images         []string `json:"images"`
	UseTools       *bool    `json:"use_tools"`
}

type chatResponse struct {
	*chat.TurnResult
	Exhausted bool `json:"exhausted"`
}

type directRequest struct {
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	Temperature *float64           `json:"temperature"`
	Messages    []provider.Message `json:"messages" binding:"required,min=1"`
}

type historyRequest struct {
	Provider string             `json:"provider"`
	Messages []provider.Message `json:"messages"`
}

type executeRequest struct {
	ToolName string         `json:"tool_name" binding:"required"`
	Input    map[string]any `json:"input"`
}

type executeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": s.chat.Health(c.Request.Context()),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":          s.version,
		"uptime_seconds":   int64(time.Since(s.started).Seconds()),
		"conversations":    s.chat.Store().Len(),
		"default_provider": s.chat.DefaultProvider(),
		"providers":        s.chat.Providers(),
		"mcp_servers":      s.mcp.Servers(),
		"tools":            s.tools.Len(),
		"subscribers":      s.events.SubscriberCount(),
	})
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":   s.chat.DefaultProvider(),
		"providers": s.chat.ListProviders(c.Request.Context()),
	})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	turn := chat.TurnRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Images:         req.Images,
		Provider:       req.Provider,
		Model:          req.Model,
		Temperature:    req.Temperature,
		SystemPrompt:   req.SystemPrompt,
	}

	run := s.chat.ChatWithTools
	if req.UseTools != nil && !*req.UseTools {
		run = s.chat.Chat
	}
	result, err := run(c.Request.Context(), turn)
	if err != nil {
		s.chatError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{TurnResult: result, Exhausted: result.Exhausted()})
}

func (s *Server) handleDirect(c *gin.Context) {
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := s.chat.Direct(c.Request.Context(), chat.DirectRequest{
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    req.Messages,
	})
	if err != nil {
		s.chatError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReplaceHistory(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Provider != "" {
		if _, err := s.chat.Provider(req.Provider); err != nil {
			badRequest(c, err)
			return
		}
	}

	conv := s.chat.Store().ReplaceHistory(c.Param("id"), req.Provider, req.Messages)
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conv.ID,
		"provider":        conv.Provider(),
		"messages":        conv.Len(),
	})
}

func (s *Server) handleClear(c *gin.Context) {
	id := c.Param("id")
	if !s.chat.Store().Clear(id) {
		notFound(c, "conversation not found: "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id, "status": "cleared"})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	if !s.chat.Store().Delete(id) {
		notFound(c, "conversation not found: "+id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id, "status": "deleted"})
}

func (s *Server) handleListServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"servers": s.mcp.Servers()})
}

func (s *Server) handleConnect(c *gin.Context) {
	var cfg mcp.ServerConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}

	result := s.mcp.Connect(c.Request.Context(), cfg)
	status := http.StatusOK
	switch {
	case result.OK():
	case errors.Is(result.Err, mcp.ErrUnsupportedTransport),
		errors.Is(result.Err, mcp.ErrMissingCommand),
		errors.Is(result.Err, mcp.ErrReservedName):
		status = http.StatusBadRequest
	default:
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func (s *Server) handleDisconnect(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{
		"server":       name,
		"disconnected": s.mcp.Disconnect(name),
	})
}

func (s *Server) handleTools(c *gin.Context) {
	tools := s.tools.Summary()
	c.JSON(http.StatusOK, gin.H{"tools": tools, "count": len(tools)})
}

func (s *Server) handleExecuteTool(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	output, errText := s.chat.ExecuteTool(c.Request.Context(), req.ToolName, req.Input)
	c.JSON(http.StatusOK, executeResponse{Output: output, Error: errText})
}

// chatError maps orchestrator failures onto HTTP statuses.
func (s *Server) chatError(c *gin.Context, err error) {
	if errors.Is(err, chat.ErrUnknownProvider) {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error": err.Error(),
		"code":  string(provider.Classify(err)),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg, "code": "not_found"})
}
