// Package grpcmw provides gRPC server interceptors that correlate calls and
// submit one record per unary RPC into a relay.
package grpcmw

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// CallRecord describes one served unary RPC.
type CallRecord struct {
	Time       time.Time      `json:"time"`
	Method     string         `json:"method"`
	Code       string         `json:"code"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Peer       string         `json:"peer,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ContextInterceptor enriches the call context with the trace and request
// identifiers read from the incoming metadata.
func ContextInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := actualOptions(opts...)

	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(cfg.enrich(ctx), req)
	}
}

// UnaryServerInterceptor enriches the call context like ContextInterceptor and
// submits a CallRecord to submitter once the handler returned.
func UnaryServerInterceptor(submitter hyperrelay.Submitter[CallRecord], opts ...Option) grpc.UnaryServerInterceptor {
	cfg := actualOptions(opts...)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := cfg.now()
		ctx = cfg.enrich(ctx)

		resp, err := handler(ctx, req)

		if submitter == nil {
			return resp, err
		}

		record := CallRecord{
			Time:       start,
			Code:       status.Code(err).String(),
			Duration:   cfg.now().Sub(start),
			Attributes: attributes(ctx, cfg.extractors),
		}

		if info != nil {
			record.Method = info.FullMethod
		}

		if err != nil {
			record.Error = status.Convert(err).Message()
		}

		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			record.Peer = p.Addr.String()
		}

		record.TraceID, _ = ctx.Value(constants.TraceKey{}).(string)
		record.RequestID, _ = ctx.Value(constants.RequestKey{}).(string)

		submitter.Submit(record)

		return resp, err
	}
}

func (o options) enrich(ctx context.Context) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)

	ctx = o.withID(ctx, constants.TraceKey{}, md.Get(o.traceKey))
	ctx = o.withID(ctx, constants.RequestKey{}, md.Get(o.requestKey))

	return ctx
}

func (o options) withID(ctx context.Context, key any, values []string) context.Context {
	if len(values) > 0 && values[0] != "" {
		return context.WithValue(ctx, key, values[0])
	}

	if !o.generateIfMiss {
		return ctx
	}

	if id := o.idGenerator(); id != "" {
		return context.WithValue(ctx, key, id)
	}

	return ctx
}

func attributes(ctx context.Context, extractors []hyperrelay.ContextExtractor) map[string]any {
	all := append(hyperrelay.GlobalContextExtractors(), extractors...)

	fields := hyperrelay.ApplyContextExtractors(ctx, all...)
	if len(fields) == 0 {
		return nil
	}

	attrs := make(map[string]any, len(fields))
	for _, field := range fields {
		attrs[field.Key] = field.Value
	}

	return attrs
}
