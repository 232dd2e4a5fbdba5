package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BridgeInstruments are the counters and histograms recorded by transfer
// flows and chain adapters.
type BridgeInstruments struct {
	Transfers      metric.Int64Counter
	StepDuration   metric.Float64Histogram
	PollAttempts   metric.Int64Counter
	SwitchAttempts metric.Int64Counter
	RPCErrors      metric.Int64Counter
}

// NewBridgeInstruments registers the bridge instruments on meter. A nil
// meter uses the global provider.
func NewBridgeInstruments(meter metric.Meter) (*BridgeInstruments, error) {
	if meter == nil {
		meter = otel.Meter("torus-bridge")
	}

	transfers, err := meter.Int64Counter("bridge_transfers_total",
		metric.WithDescription("Transfers by direction and outcome"))
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram("bridge_step_duration_seconds",
		metric.WithDescription("Duration of each bridge step"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 900))
	if err != nil {
		return nil, err
	}

	pollAttempts, err := meter.Int64Counter("bridge_poll_attempts_total",
		metric.WithDescription("Balance refetches while waiting for arrival"))
	if err != nil {
		return nil, err
	}

	switchAttempts, err := meter.Int64Counter("bridge_chain_switch_attempts_total",
		metric.WithDescription("Wallet chain switch attempts"))
	if err != nil {
		return nil, err
	}

	rpcErrors, err := meter.Int64Counter("bridge_rpc_errors_total",
		metric.WithDescription("RPC failures by chain"))
	if err != nil {
		return nil, err
	}

	return &BridgeInstruments{
		Transfers:      transfers,
		StepDuration:   stepDuration,
		PollAttempts:   pollAttempts,
		SwitchAttempts: switchAttempts,
		RPCErrors:      rpcErrors,
	}, nil
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *BridgeInstruments {
	m, _ := NewBridgeInstruments(otelNoopMeter())
	return m
}

// TransferFinished counts a transfer outcome.
func (b *BridgeInstruments) TransferFinished(ctx context.Context, direction, outcome string) {
	if b == nil {
		return
	}
	b.Transfers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("outcome", outcome),
	))
}

// StepFinished records the duration of a step.
func (b *BridgeInstruments) StepFinished(ctx context.Context, direction string, step int, seconds float64, ok bool) {
	if b == nil {
		return
	}
	b.StepDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.Int("step", step),
		attribute.Bool("success", ok),
	))
}

// PollAttempt counts one balance refetch.
func (b *BridgeInstruments) PollAttempt(ctx context.Context, label string, failed bool) {
	if b == nil {
		return
	}
	b.PollAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("label", label),
		attribute.Bool("error", failed),
	))
}

// SwitchAttempt counts one chain switch attempt.
func (b *BridgeInstruments) SwitchAttempt(ctx context.Context, targetChainID uint64) {
	if b == nil {
		return
	}
	b.SwitchAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("target_chain_id", int64(targetChainID)),
	))
}

// RPCError counts one failed RPC call.
func (b *BridgeInstruments) RPCError(ctx context.Context, chain, method string) {
	if b == nil {
		return
	}
	b.RPCErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chain", chain),
		attribute.String("method", method),
	))
}
