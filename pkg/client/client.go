package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the requested block does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpiredChallenge is returned when the signed challenge is outside
	// the validation window. Request a new challenge and sign again.
	ErrExpiredChallenge = errors.New("challenge expired")

	// ErrInvalidSignature is returned when the signature does not prove
	// ownership of the address.
	ErrInvalidSignature = errors.New("invalid signature")
)

// ValidationRequest is an issued challenge and its remaining window.
type ValidationRequest struct {
	WalletAddress    string `json:"walletAddress"`
	RequestTimeStamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
}

// SignatureStatus is the result of ValidateSignature.
type SignatureStatus struct {
	RegisterStar bool `json:"registerStar"`
	Status       struct {
		ValidationRequest
		MessageSignature string `json:"messageSignature"`
	} `json:"status"`
}

// Star is a star record. Story is plain text on submission; in responses it
// is hex-encoded and StoryDecoded holds the text.
type Star struct {
	RA            string `json:"ra"`
	Dec           string `json:"dec"`
	Magnitude     string `json:"mag,omitempty"`
	Constellation string `json:"cen,omitempty"`
	Story         string `json:"story"`
	StoryDecoded  string `json:"storyDecoded,omitempty"`
}

// RegisterStarRequest is the payload for RegisterStar.
type RegisterStarRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Star      Star   `json:"star"`
}

// Block is a ledger block as returned by the API. Body is the raw payload;
// use StarBody for blocks that carry a star.
type Block struct {
	Hash              string          `json:"hash"`
	Height            int64           `json:"height"`
	Time              int64           `json:"time"`
	PreviousBlockHash *string         `json:"previousBlockHash"`
	Body              json.RawMessage `json:"body"`
}

// StarBody is the body of a block registered through RegisterStar.
type StarBody struct {
	Address string `json:"address"`
	Star    Star   `json:"star"`
}

// StarBody decodes b's body as a star registration.
func (b *Block) StarBody() (*StarBody, error) {
	var sb StarBody
	if err := json.Unmarshal(b.Body, &sb); err != nil {
		return nil, fmt.Errorf("decode star body: %w", err)
	}
	if sb.Address == "" {
		return nil, fmt.Errorf("block %d does not carry a star", b.Height)
	}
	return &sb, nil
}

// LedgerOverview is the chain summary.
type LedgerOverview struct {
	Height int64  `json:"height"`
	Tip    string `json:"tip"`
}

// VerifyResult is the outcome of a full-chain validation.
type VerifyResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// Client talks to a star notary server.
type Client struct {
	base       string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at base (e.g. "http://localhost:8080").
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimSuffix(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RequestValidation asks the server for a challenge message for address.
func (c *Client) RequestValidation(ctx context.Context, address string) (*ValidationRequest, error) {
	var out ValidationRequest
	if err := c.call(ctx, http.MethodPost, "/api/v1/requestValidation", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateSignature checks a signed challenge without registering anything.
func (c *Client) ValidateSignature(ctx context.Context, address, message, signature string) (*SignatureStatus, error) {
	var out SignatureStatus
	body := map[string]string{"address": address, "message": message, "signature": signature}
	if err := c.call(ctx, http.MethodPost, "/api/v1/message-signature/validate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterStar submits a signed challenge and star; it returns the new block.
func (c *Client) RegisterStar(ctx context.Context, req RegisterStarRequest) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/block", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlock returns the block at height.
func (c *Client) GetBlock(ctx context.Context, height int64) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/block/"+strconv.FormatInt(height, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StarByHash returns the block with the given hash.
func (c *Client) StarByHash(ctx context.Context, hash string) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/stars/hash/"+url.PathEscape(hash), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StarsByAddress returns every star block registered by address, oldest first.
func (c *Client) StarsByAddress(ctx context.Context, address string) ([]Block, error) {
	var out []Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/stars/address/"+url.PathEscape(address), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Overview returns the chain height and tip hash.
func (c *Client) Overview(ctx context.Context) (*LedgerOverview, error) {
	var out LedgerOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the server to validate the whole chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs a JSON request and decodes a 2xx response into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := apiErrorMessage(raw)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrExpiredChallenge, msg)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrInvalidSignature, msg)
		default:
			return fmt.Errorf("server error %d: %s", resp.StatusCode, msg)
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiErrorMessage extracts the "error" field of an error response.
func apiErrorMessage(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
