package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starledger/internal/challenge"
	"github.com/jmerrifield20/starledger/internal/ledger"
	"github.com/jmerrifield20/starledger/internal/notary/handler"
	"github.com/jmerrifield20/starledger/pkg/client"
	"go.uber.org/zap"
)

// ── Test server ─────────────────────────────────────────────────────────────

func newServer(t *testing.T, clock func() time.Time) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chal := challenge.New(challenge.WithClock(clock))
	l := ledger.New(zap.NewNop(), ledger.WithClock(clock), ledger.WithChallenger(chal))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(handler.NewRouter(ctx, handler.RouterConfig{
		Ledger:     l,
		Challenges: chal,
		Logger:     zap.NewNop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_invalidURL(t *testing.T) {
	if _, err := client.New("not a url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestRegisterStar_roundTrip(t *testing.T) {
	srv := newServer(t, time.Now)
	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	addr := challenge.AddressOf(key)

	vr, err := c.RequestValidation(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := challenge.Sign(vr.Message, key)
	if err != nil {
		t.Fatal(err)
	}

	status, err := c.ValidateSignature(ctx, addr, vr.Message, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !status.RegisterStar {
		t.Fatalf("expected registerStar=true, got %+v", status)
	}

	block, err := c.RegisterStar(ctx, client.RegisterStarRequest{
		Address:   addr,
		Message:   vr.Message,
		Signature: sig,
		Star:      client.Star{RA: "16h 29m 1.0s", Dec: "68° 52' 56.9", Story: "Star1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if block.Height != 1 {
		t.Errorf("expected height 1, got %d", block.Height)
	}

	got, err := c.GetBlock(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	body, err := got.StarBody()
	if err != nil {
		t.Fatal(err)
	}
	if body.Star.StoryDecoded != "Star1" {
		t.Errorf("StoryDecoded = %q, want Star1", body.Star.StoryDecoded)
	}

	byHash, err := c.StarByHash(ctx, block.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if byHash.Height != 1 {
		t.Errorf("StarByHash height = %d", byHash.Height)
	}

	stars, err := c.StarsByAddress(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(stars) != 1 {
		t.Errorf("expected 1 star, got %d", len(stars))
	}

	ov, err := c.Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Height != 1 || ov.Tip != block.Hash {
		t.Errorf("Overview() = %+v", ov)
	}

	res, err := c.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Errorf("expected valid chain, problems: %v", res.Problems)
	}
}

func TestRegisterStar_errors(t *testing.T) {
	issued := time.Unix(1_000, 0)
	var current atomic.Int64
	current.Store(issued.Unix())
	srv := newServer(t, func() time.Time { return time.Unix(current.Load(), 0) })
	c, _ := client.New(srv.URL)
	ctx := context.Background()

	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	addr := challenge.AddressOf(key)
	msg := challenge.New(challenge.WithClock(func() time.Time { return issued })).Issue(addr)
	forged, _ := challenge.Sign(msg, other)

	star := client.Star{RA: "1h", Dec: "2d", Story: "s"}

	_, err := c.RegisterStar(ctx, client.RegisterStarRequest{Address: addr, Message: msg, Signature: forged, Star: star})
	if !errors.Is(err, client.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	current.Store(issued.Add(10 * time.Minute).Unix())
	sig, _ := challenge.Sign(msg, key)
	_, err = c.RegisterStar(ctx, client.RegisterStarRequest{Address: addr, Message: msg, Signature: sig, Star: star})
	if !errors.Is(err, client.ErrExpiredChallenge) {
		t.Errorf("expected ErrExpiredChallenge, got %v", err)
	}
}

func TestGetBlock_notFound(t *testing.T) {
	srv := newServer(t, time.Now)
	c, _ := client.New(srv.URL)

	_, err := c.GetBlock(context.Background(), 999)
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStarBody_genesis(t *testing.T) {
	srv := newServer(t, time.Now)
	c, _ := client.New(srv.URL)

	g, err := c.GetBlock(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.PreviousBlockHash != nil {
		t.Errorf("genesis previousBlockHash = %v, want nil", *g.PreviousBlockHash)
	}
	if _, err := g.StarBody(); err == nil {
		t.Error("genesis block should not decode as a star")
	}
}
