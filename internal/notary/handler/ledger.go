package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LedgerHandler exposes read-only HTTP endpoints describing the chain itself.
type LedgerHandler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
	}
}

// Overview handles GET /ledger — returns the chain height and tip hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	tip := h.ledger.LastBlock()
	c.JSON(http.StatusOK, gin.H{
		"height": tip.Height,
		"tip":    tip.Hash,
	})
}

// Verify handles GET /ledger/verify — walks the full chain and reports every
// inconsistency found.
func (h *LedgerHandler) Verify(c *gin.Context) {
	problems := h.ledger.ValidateChain()
	SetChainProblems(len(problems))
	if len(problems) > 0 {
		h.logger.Warn("ledger integrity check failed", zap.Strings("problems", problems))
		c.JSON(http.StatusOK, gin.H{"valid": false, "problems": problems})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "problems": []string{}})
}
