package chat

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"bellhop/internal/crawl"
	"bellhop/internal/profile"
	"bellhop/pkg/llm"
	"bellhop/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxMessageRunes = 10000

type Handler struct {
	Engine   *Engine
	Sessions SessionStore
	Crawler  Crawler
	Logger   logging.Logger

	// conversationLocks serializes concurrent turns for the same
	// conversation; the merge policy is not commutative.
	conversationLocks sync.Map
}

func NewHandler(engine *Engine, sessions SessionStore, crawler Crawler, logger logging.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		Sessions: sessions,
		Crawler:  crawler,
		Logger:   logger,
	}
}

func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.POST("/crawl", handler.HandleCrawl)
	router.POST("/chat", handler.HandleChat)
	router.POST("/knowledge", handler.HandleKnowledge)
	router.GET("/conversations/:id/profile", handler.HandleProfile)
}

type CrawlRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"max_pages,omitempty"`
}

func (h *Handler) HandleCrawl(c *gin.Context) {
	var req CrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	result, err := h.Crawler.Crawl(c.Request.Context(), req.URL, req.MaxPages)
	if err != nil {
		if errors.Is(err, crawl.ErrInvalidSeedURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.Logger.WithError(err).WithField("url", req.URL).Error("Crawl failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "crawl failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ChatResponse struct {
	ConversationID string          `json:"conversation_id"`
	Reply          string          `json:"reply"`
	Profile        profile.Profile `json:"profile"`
	Stage          string          `json:"stage"`
}

func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if len([]rune(req.Message)) > maxMessageRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}

	ctx := c.Request.Context()
	conversationID := strings.TrimSpace(req.ConversationID)
	isNewConversation := conversationID == ""
	if isNewConversation {
		conversationID = uuid.NewString()
	}

	// An empty message only makes sense as the opening request of a new
	// conversation, which yields the greeting.
	if req.Message == "" && !isNewConversation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	unlock := h.lockConversation(conversationID)
	defer unlock()

	state, err := h.Sessions.Load(ctx, conversationID)
	if errors.Is(err, ErrSessionNotFound) {
		state = h.Engine.NewState()
	} else if err != nil {
		h.Logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	next, reply, err := h.Engine.ProcessTurn(ctx, state, req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Sessions.Save(ctx, conversationID, next); err != nil {
		h.Logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save conversation"})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		ConversationID: conversationID,
		Reply:          reply,
		Profile:        next.Profile,
		Stage:          h.Engine.Stage(next),
	})
}

type KnowledgeRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Corpus         string        `json:"corpus,omitempty"`
	Transcript     []llm.Message `json:"transcript,omitempty"`
}

type KnowledgeResponse struct {
	ConversationID string          `json:"conversation_id"`
	Profile        profile.Profile `json:"profile"`
	Stage          string          `json:"stage"`
}

// HandleKnowledge runs the extract-and-merge half of a turn without a chat
// reply. Useful for backfilling a profile from an existing corpus.
func (h *Handler) HandleKnowledge(c *gin.Context) {
	var req KnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Corpus == "" && len(req.Transcript) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "corpus or transcript is required"})
		return
	}

	ctx := c.Request.Context()
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	unlock := h.lockConversation(conversationID)
	defer unlock()

	state, err := h.Sessions.Load(ctx, conversationID)
	if errors.Is(err, ErrSessionNotFound) {
		state = h.Engine.NewState()
	} else if err != nil {
		h.Logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	next := h.Engine.Accumulate(ctx, state, req.Corpus, req.Transcript)

	if err := h.Sessions.Save(ctx, conversationID, next); err != nil {
		h.Logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save conversation"})
		return
	}

	c.JSON(http.StatusOK, KnowledgeResponse{
		ConversationID: conversationID,
		Profile:        next.Profile,
		Stage:          h.Engine.Stage(next),
	})
}

func (h *Handler) HandleProfile(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}

	state, err := h.Sessions.Load(c.Request.Context(), conversationID)
	if errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.Logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, KnowledgeResponse{
		ConversationID: conversationID,
		Profile:        state.Profile,
		Stage:          h.Engine.Stage(state),
	})
}

func (h *Handler) lockConversation(conversationID string) func() {
	lockVal, _ := h.conversationLocks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := lockVal.(*sync.Mutex)
	mu.Lock()
	return func() {
		mu.Unlock()
		if mu.TryLock() {
			h.conversationLocks.Delete(conversationID)
			mu.Unlock()
		}
	}
}
