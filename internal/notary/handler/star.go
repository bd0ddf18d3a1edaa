package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starledger/internal/challenge"
	"github.com/jmerrifield20/starledger/internal/ledger"
	"github.com/jmerrifield20/starledger/internal/star"
	"go.uber.org/zap"
)

// Ledger is the subset of *ledger.Ledger the HTTP layer depends on.
type Ledger interface {
	SubmitOwnershipProof(ctx context.Context, address, message, signature string, claimData any) (*ledger.Block, error)
	GetByHeight(height int64) (*ledger.Block, bool)
	GetByHash(hash string) (*ledger.Block, bool)
	BlocksByAddress(address string) []*ledger.Block
	Height() int64
	LastBlock() *ledger.Block
	ValidateChain() []string
}

// StarHandler serves the star registration and lookup endpoints.
type StarHandler struct {
	ledger     Ledger
	challenges *challenge.Challenger
	logger     *zap.Logger
}

// NewStarHandler creates a new StarHandler.
func NewStarHandler(l Ledger, challenges *challenge.Challenger, logger *zap.Logger) *StarHandler {
	return &StarHandler{ledger: l, challenges: challenges, logger: logger}
}

// Register mounts the star routes on the given router group.
func (h *StarHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/requestValidation", h.RequestValidation)
	rg.POST("/message-signature/validate", h.ValidateSignature)
	rg.POST("/block", h.RegisterStar)
	rg.GET("/block/:height", h.GetBlock)

	s := rg.Group("/stars")
	{
		s.GET("/hash/:hash", h.GetByHash)
		s.GET("/address/:address", h.GetByAddress)
	}
}

type validationRequest struct {
	Address string `json:"address" binding:"required"`
}

// RequestValidation handles POST /requestValidation and issues a challenge
// message for the wallet to sign.
func (h *StarHandler) RequestValidation(c *gin.Context) {
	var req validationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	c.JSON(http.StatusOK, h.challenges.Request(req.Address))
}

type signatureRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type signatureStatus struct {
	challenge.ValidationRequest
	MessageSignature string `json:"messageSignature"`
}

// ValidateSignature handles POST /message-signature/validate. It reports
// whether the signed challenge would currently be accepted; the ledger is
// not modified.
func (h *StarHandler) ValidateSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address, message and signature are required"})
		return
	}

	now := h.challenges.Now().Unix()
	vr, err := h.challenges.Describe(req.Message, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inWindow := h.challenges.CheckWindow(req.Message, now)
	signed := strings.EqualFold(vr.WalletAddress, req.Address) &&
		h.challenges.VerifySignature(req.Message, req.Address, req.Signature)

	status := signatureStatus{ValidationRequest: vr, MessageSignature: "invalid"}
	if signed {
		status.MessageSignature = "valid"
	}
	c.JSON(http.StatusOK, gin.H{
		"registerStar": inWindow && signed,
		"status":       status,
	})
}

type registerRequest struct {
	Address   string    `json:"address" binding:"required"`
	Message   string    `json:"message" binding:"required"`
	Signature string    `json:"signature" binding:"required"`
	Star      star.Star `json:"star"`
}

// RegisterStar handles POST /block — verifies the signed challenge and
// records the star on the ledger.
func (h *StarHandler) RegisterStar(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := req.Star.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	block, err := h.ledger.SubmitOwnershipProof(c.Request.Context(),
		req.Address, req.Message, req.Signature, req.Star.Encode())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	RecordAppend(block.Height)
	c.JSON(http.StatusCreated, renderBlock(block))
}

func (h *StarHandler) writeSubmitError(c *gin.Context, err error) {
	var integrity *ledger.ChainIntegrityError
	switch {
	case errors.Is(err, ledger.ErrExpiredChallenge):
		RecordRejection("expired")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidSignature):
		RecordRejection("invalid_signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &integrity):
		RecordRejection("integrity")
		h.logger.Error("ledger refused append", zap.Strings("problems", integrity.Details))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger integrity check failed"})
	default:
		h.logger.Error("register star", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register star"})
	}
}

// GetBlock handles GET /block/:height.
func (h *StarHandler) GetBlock(c *gin.Context) {
	height, err := strconv.ParseInt(c.Param("height"), 10, 64)
	if err != nil || height < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a non-negative integer"})
		return
	}

	block, ok := h.ledger.GetByHeight(height)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, renderBlock(block))
}

// GetByHash handles GET /stars/hash/:hash.
func (h *StarHandler) GetByHash(c *gin.Context) {
	block, ok := h.ledger.GetByHash(c.Param("hash"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, renderBlock(block))
}

// GetByAddress handles GET /stars/address/:address — every star registered
// by the wallet, oldest first.
func (h *StarHandler) GetByAddress(c *gin.Context) {
	blocks := h.ledger.BlocksByAddress(c.Param("address"))
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, renderBlock(b))
	}
	c.JSON(http.StatusOK, out)
}

// starBlock is the API form of a block carrying an ownership proof.
type starBlock struct {
	Hash              string   `json:"hash"`
	Height            int64    `json:"height"`
	Time              int64    `json:"time"`
	PreviousBlockHash *string  `json:"previousBlockHash"`
	Body              starBody `json:"body"`
}

type starBody struct {
	Address string       `json:"address"`
	Star    star.Decoded `json:"star"`
}

// renderBlock decodes star stories for proof blocks; any other block is
// returned in its stored form.
func renderBlock(b *ledger.Block) any {
	proof, ok := ledger.DecodeProof(b)
	if !ok {
		return b
	}
	var s star.Star
	if err := json.Unmarshal(proof.Star, &s); err != nil {
		return b
	}
	prev := b.PreviousHash
	return starBlock{
		Hash:              b.Hash,
		Height:            b.Height,
		Time:              b.Timestamp,
		PreviousBlockHash: &prev,
		Body:              starBody{Address: proof.Address, Star: star.Decode(s)},
	}
}
