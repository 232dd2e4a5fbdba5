package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apm"
)

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOrchestrator_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := newHarness()
	h.fc.Tracer = apm.NewTracer("test")
	o, _, _ := newTestOrchestrator(t, h)

	if err := o.ExecuteTransfer(context.Background(), domain.BaseToNative, "1"); err != nil {
		t.Fatalf("ExecuteTransfer() error = %v", err)
	}

	var step1, poll bool
	for _, span := range recorder.Ended() {
		switch {
		case strings.HasSuffix(span.Name(), ".step1"):
			v, ok := spanAttr(span, apm.AttrTxHash)
			if !ok || v.AsString() != "0xwarpbase" {
				t.Errorf("step 1 span tx hash = %v, %v", v.AsString(), ok)
			}
			step1 = true
		case span.Name() == "bridge.poll_balance":
			if v, ok := spanAttr(span, apm.AttrAttempts); !ok || v.AsInt64() < 1 {
				t.Errorf("poll span attempts = %d, %v", v.AsInt64(), ok)
			}
			poll = true
		}
	}
	if !step1 || !poll {
		t.Errorf("spans recorded: step1 %v poll %v", step1, poll)
	}
}

func TestOrchestrator_SettledHook(t *testing.T) {
	tests := []struct {
		name      string
		failStep2 bool
		want      int
	}{
		{name: "completed", want: 1},
		{name: "failed", failStep2: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			if tt.failStep2 {
				h.withdrawer.withdrawErr = []error{errors.New("execution reverted")}
			}
			var settled int
			o, _, _ := newTestOrchestrator(t, h, WithTransactionSettled(func(ctx context.Context) { settled++ }))

			_ = o.ExecuteTransfer(context.Background(), domain.BaseToNative, "1")
			if settled != tt.want {
				t.Errorf("settled = %d, want %d", settled, tt.want)
			}
		})
	}
}
