// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the read-only JSON-RPC API of the futarchy engine.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json"
	"github.com/luxfi/ids"

	"github.com/luxfi/futarchy/arbitrage"
	"github.com/luxfi/futarchy/liquidity"
	"github.com/luxfi/futarchy/quantum"
)

const ServiceName = "futarchy"

var ErrInvalidRequest = errors.New("invalid request")

// Engine is the read side of the futarchy engine.
type Engine interface {
	SpotPoolIDs() ([]ids.ID, error)
	SpotPool(poolID ids.ID) (*liquidity.SpotPool, error)
	ConditionalPools(poolID ids.ID) ([]*liquidity.ConditionalPool, error)
	Share(shareID ids.ID) (*liquidity.LPShare, error)
	LPValue(shareID ids.ID) (uint64, uint64, error)
	Phase(poolID ids.ID) (quantum.Phase, error)
	Price(now time.Time, poolID ids.ID) (quantum.ResolvedPrice, error)
	QuoteSwap(now time.Time, poolID ids.ID, dir liquidity.Direction, amountIn uint64) (*liquidity.SwapResult, error)
	QuoteArbitrage(now time.Time, poolID ids.ID) (arbitrage.Quote, error)
}

// Service serves read-only views of pools, shares and prices. Nothing it
// does mutates state.
type Service struct {
	engine Engine
	now    func() time.Time
}

// NewService creates a new API service reading the time from [now]. A nil
// [now] uses the wall clock.
func NewService(engine Engine, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine: engine,
		now:    now,
	}
}

// NewHandler returns an HTTP handler serving [service] over JSON-RPC.
func NewHandler(service *Service) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(service, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register futarchy service: %w", err)
	}
	return server, nil
}

// PingArgs is the argument for the Ping API.
type PingArgs struct{}

// PingReply is the reply for the Ping API.
type PingReply struct {
	Success bool `json:"success"`
}

// Ping returns a simple health check response.
func (s *Service) Ping(_ *http.Request, _ *PingArgs, reply *PingReply) error {
	reply.Success = true
	return nil
}

// ListSpotPoolsArgs is the argument for the ListSpotPools API.
type ListSpotPoolsArgs struct{}

// ListSpotPoolsReply is the reply for the ListSpotPools API.
type ListSpotPoolsReply struct {
	PoolIDs []ids.ID `json:"poolIds"`
}

// ListSpotPools returns the ids of every spot pool.
func (s *Service) ListSpotPools(_ *http.Request, _ *ListSpotPoolsArgs, reply *ListSpotPoolsReply) error {
	poolIDs, err := s.engine.SpotPoolIDs()
	if err != nil {
		return err
	}
	reply.PoolIDs = poolIDs
	return nil
}

// PoolArgs names a spot pool.
type PoolArgs struct {
	PoolID ids.ID `json:"poolId"`
}

// GetSpotPoolReply is the reply for the GetSpotPool API.
type GetSpotPoolReply struct {
	Pool  *liquidity.SpotPool `json:"pool"`
	Phase string              `json:"phase"`
	Price uint64              `json:"price"`
}

// GetSpotPool returns a spot pool with its phase and marginal price.
func (s *Service) GetSpotPool(_ *http.Request, args *PoolArgs, reply *GetSpotPoolReply) error {
	pool, err := s.engine.SpotPool(args.PoolID)
	if err != nil {
		return err
	}
	reply.Pool = pool
	reply.Phase = quantum.PhaseOf(pool).String()
	reply.Price = pool.Price()
	return nil
}

// GetConditionalPoolsReply is the reply for the GetConditionalPools API.
type GetConditionalPoolsReply struct {
	Pools []*liquidity.ConditionalPool `json:"pools"`
}

// GetConditionalPools returns the conditional pools of a spot pool.
func (s *Service) GetConditionalPools(_ *http.Request, args *PoolArgs, reply *GetConditionalPoolsReply) error {
	pools, err := s.engine.ConditionalPools(args.PoolID)
	if err != nil {
		return err
	}
	reply.Pools = pools
	return nil
}

// ShareArgs names an LP share.
type ShareArgs struct {
	ShareID ids.ID `json:"shareId"`
}

// GetShareReply is the reply for the GetShare API.
type GetShareReply struct {
	Share       *liquidity.LPShare `json:"share"`
	AssetValue  uint64             `json:"assetValue"`
	StableValue uint64             `json:"stableValue"`
}

// GetShare returns an LP share and the spot reserves it claims.
func (s *Service) GetShare(_ *http.Request, args *ShareArgs, reply *GetShareReply) error {
	share, err := s.engine.Share(args.ShareID)
	if err != nil {
		return err
	}
	asset, stable, err := s.engine.LPValue(args.ShareID)
	if err != nil {
		return err
	}
	reply.Share = share
	reply.AssetValue = asset
	reply.StableValue = stable
	return nil
}

// GetPriceReply is the reply for the GetPrice API.
type GetPriceReply struct {
	Price   uint64 `json:"price"`
	Source  string `json:"source"`
	Outcome uint32 `json:"outcome"`
}

// GetPrice returns the governance price of a spot pool.
func (s *Service) GetPrice(_ *http.Request, args *PoolArgs, reply *GetPriceReply) error {
	price, err := s.engine.Price(s.now(), args.PoolID)
	if err != nil {
		return err
	}
	reply.Price = price.Price
	reply.Source = price.Source.String()
	reply.Outcome = price.Outcome
	return nil
}

// QuoteSwapArgs is the argument for the QuoteSwap API.
type QuoteSwapArgs struct {
	PoolID    ids.ID `json:"poolId"`
	Direction string `json:"direction"`
	AmountIn  uint64 `json:"amountIn"`
}

// QuoteSwapReply is the reply for the QuoteSwap API.
type QuoteSwapReply struct {
	Quote *liquidity.SwapResult `json:"quote"`
}

// QuoteSwap returns what a spot swap would produce now.
func (s *Service) QuoteSwap(_ *http.Request, args *QuoteSwapArgs, reply *QuoteSwapReply) error {
	dir, err := liquidity.ParseDirection(args.Direction)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if args.AmountIn == 0 {
		return fmt.Errorf("%w: amountIn required", ErrInvalidRequest)
	}
	quote, err := s.engine.QuoteSwap(s.now(), args.PoolID, dir, args.AmountIn)
	if err != nil {
		return err
	}
	reply.Quote = quote
	return nil
}

// QuoteArbitrageReply is the reply for the QuoteArbitrage API.
type QuoteArbitrageReply struct {
	Amount    uint64 `json:"amount"`
	Profit    uint64 `json:"profit"`
	Direction string `json:"direction"`
	Venue     string `json:"venue"`
}

// QuoteArbitrage returns the rebalancing trade currently available.
func (s *Service) QuoteArbitrage(_ *http.Request, args *PoolArgs, reply *QuoteArbitrageReply) error {
	quote, err := s.engine.QuoteArbitrage(s.now(), args.PoolID)
	if err != nil {
		return err
	}
	reply.Amount = quote.Amount
	reply.Profit = quote.Profit
	reply.Direction = quote.Direction.String()
	reply.Venue = quote.Venue.String()
	return nil
}
