package interceptor

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/xiaonanln/liveroute/stats"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/errors"
	"github.com/xiaonanln/liveroute/util/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Limiter resolves the in-flight limit of a method. *config.AdmissionLimits implements it.
type Limiter interface {
	MaxActive(service, method string) int64
}

type options struct {
	maxActive int64
	limiter   Limiter
	clock     clock.Clock
	endpoint  func(cc *grpc.ClientConn) string
}

// Option configures UnaryClientInterceptor.
type Option func(*options)

// WithMaxActive rejects calls while n calls of the same method to the same target
// are in flight. n <= 0 disables the limit.
func WithMaxActive(n int64) Option {
	return func(o *options) {
		o.maxActive = n
	}
}

// WithLimiter resolves the limit per method, overriding WithMaxActive.
func WithLimiter(l Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithEndpoint names the endpoint a call is counted under. Routing looks counters
// up by the candidate id, or its address when it has no id, so fn should return
// the same key. The default is the connection target.
func WithEndpoint(fn func(cc *grpc.ClientConn) string) Option {
	return func(o *options) {
		o.endpoint = fn
	}
}

// WithClock sets the clock used to time calls.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// UnaryClientInterceptor records the outcome of every unary call in reg under
// service, the endpoint key (see WithEndpoint) and the full method name. Calls over the active
// limit fail with a ResourceExhausted RejectedError without reaching the server.
func UnaryClientInterceptor(reg *stats.Registry, service string, opts ...Option) grpc.UnaryClientInterceptor {
	o := options{
		clock:    clock.New(),
		endpoint: (*grpc.ClientConn).Target,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		maxActive := o.maxActive
		if o.limiter != nil {
			maxActive = o.limiter.MaxActive(service, method)
		}

		endpoint := o.endpoint(cc)
		counter := reg.Counter(service, endpoint, method)
		if !counter.Begin(maxActive) {
			metrics.RecordAdmissionRejection(service, endpoint)
			return errors.NewRejectedError(endpoint, stats.RequestKey(method), maxActive)
		}

		start := o.clock.Now()
		err := invoker(ctx, method, req, reply, cc, callOpts...)
		elapsed := o.clock.Since(start)

		counter.End(elapsed.Milliseconds(), err == nil)
		metrics.RecordCallDuration(service, status.Code(err).String(), elapsed.Seconds())
		return err
	}
}

// TagsFromContext returns the outgoing gRPC metadata of ctx as request tags.
func TagsFromContext(ctx context.Context) tag.Tags {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return nil
	}
	return tag.Tags(md)
}

// WithTags appends tags to the outgoing gRPC metadata of ctx.
func WithTags(ctx context.Context, tags tag.Tags) context.Context {
	kv := make([]string, 0, 2*len(tags))
	for k, values := range tags {
		for _, v := range values {
			kv = append(kv, k, v)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
