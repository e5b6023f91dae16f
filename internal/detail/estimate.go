package detail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/smileynet/xiuxian/internal/api"
)

// Caller is the gateway surface the estimator needs.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, body any) (*api.Response, error)
}

// EstimateRequest asks for treasure awaken/recast odds at a material quality.
type EstimateRequest struct {
	TreasureID            int     `json:"treasure_id"`
	MaterialQualityFactor float64 `json:"material_quality_factor"`
}

// Estimate is the server's preview of awaken and recast outcomes.
type Estimate struct {
	AwakenRate  float64 `json:"awaken_rate"`
	RecastRate  float64 `json:"recast_rate"`
	AwakenCost  int64   `json:"awaken_cost"`
	RecastCost  int64   `json:"recast_cost"`
	RecastTimes int     `json:"recast_times"`
}

// Fields renders the estimate for a detail view.
func (e *Estimate) Fields() []Field {
	return []Field{
		{"Awaken", fmt.Sprintf("%s chance, costs %s", percent(e.AwakenRate), humanize.Comma(e.AwakenCost))},
		{"Recast", fmt.Sprintf("%s chance, costs %s", percent(e.RecastRate), humanize.Comma(e.RecastCost))},
		{"Recast so far", fmt.Sprintf("%d", e.RecastTimes)},
	}
}

// Estimator runs read-only preview calls. It never touches a cache.
type Estimator struct {
	api Caller
}

// NewEstimator creates an Estimator calling through c.
func NewEstimator(c Caller) *Estimator {
	return &Estimator{api: c}
}

// Estimate requests a treasure preview.
func (e *Estimator) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	resp, err := e.api.Call(ctx, http.MethodPost, "/treasure/estimate", req)
	if err != nil {
		return nil, fmt.Errorf("detail: estimate treasure %d: %w", req.TreasureID, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("detail: estimate treasure %d: %w", req.TreasureID, err)
	}
	var out Estimate
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview tracks the live estimate shown on an open treasure detail. Each
// input change takes a new sequence number; only the result for the latest
// number is kept, so reopening or retyping never leaves a stale listener
// writing into the view.
type Preview struct {
	seq      uint64
	target   int
	factor   float64
	estimate *Estimate
	err      error
}

// Input records a new input for target and returns the tag the eventual
// estimate must carry.
func (p *Preview) Input(target int, factor float64) uint64 {
	if target != p.target {
		p.estimate, p.err = nil, nil
	}
	p.seq++
	p.target = target
	p.factor = factor
	return p.seq
}

// Current reports whether seq is still the latest input.
func (p *Preview) Current(seq uint64) bool {
	return seq == p.seq && p.target != 0
}

// Request returns the request for the latest input.
func (p *Preview) Request() EstimateRequest {
	return EstimateRequest{TreasureID: p.target, MaterialQualityFactor: p.factor}
}

// Accept stores a result if seq is still current and reports whether it did.
func (p *Preview) Accept(seq uint64, est *Estimate, err error) bool {
	if !p.Current(seq) {
		return false
	}
	p.estimate, p.err = est, err
	return true
}

// Result returns the latest accepted estimate or error.
func (p *Preview) Result() (*Estimate, error) {
	return p.estimate, p.err
}

// Factor returns the latest material quality input.
func (p *Preview) Factor() float64 {
	return p.factor
}

// Reset drops the preview; any in-flight result is then ignored.
func (p *Preview) Reset() {
	p.seq++
	p.target = 0
	p.estimate, p.err = nil, nil
}
