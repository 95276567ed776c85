package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the meter provider.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
}

// NewProvider configures and registers the global meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Recorder publishes domain counters for the generation pipeline.
type Recorder struct {
	jobsSubmitted     metric.Int64Counter
	jobTransitions    metric.Int64Counter
	refundsIssued     metric.Int64Counter
	paymentEvents     metric.Int64Counter
	webhookDeliveries metric.Int64Counter
}

// NewRecorder registers the domain instruments on the global meter.
func NewRecorder() (*Recorder, error) {
	meter := otel.Meter("promoreel/domain")

	jobsSubmitted, err := meter.Int64Counter("promoreel.jobs.submitted",
		metric.WithDescription("Video generation jobs accepted for processing"))
	if err != nil {
		return nil, err
	}

	jobTransitions, err := meter.Int64Counter("promoreel.jobs.transitions",
		metric.WithDescription("Job state transitions applied by the reconciler"))
	if err != nil {
		return nil, err
	}

	refundsIssued, err := meter.Int64Counter("promoreel.coins.refunds",
		metric.WithDescription("Coin refunds issued for failed jobs"))
	if err != nil {
		return nil, err
	}

	paymentEvents, err := meter.Int64Counter("promoreel.payments.confirmed",
		metric.WithDescription("Payment confirmations processed"))
	if err != nil {
		return nil, err
	}

	webhookDeliveries, err := meter.Int64Counter("promoreel.webhooks.received",
		metric.WithDescription("Provider callback deliveries received"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		jobsSubmitted:     jobsSubmitted,
		jobTransitions:    jobTransitions,
		refundsIssued:     refundsIssued,
		paymentEvents:     paymentEvents,
		webhookDeliveries: webhookDeliveries,
	}, nil
}

// RecordJobSubmitted counts a job accepted for a provider.
func (r *Recorder) RecordJobSubmitted(ctx context.Context, provider string) {
	if r == nil {
		return
	}
	r.jobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordJobTransition counts a state transition applied to a job.
func (r *Recorder) RecordJobTransition(ctx context.Context, provider, from, to string) {
	if r == nil {
		return
	}
	r.jobTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRefund counts a refund issued for a failed job.
func (r *Recorder) RecordRefund(ctx context.Context, provider string) {
	if r == nil {
		return
	}
	r.refundsIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordPaymentEvent counts a payment confirmation by outcome.
func (r *Recorder) RecordPaymentEvent(ctx context.Context, provider, outcome string) {
	if r == nil {
		return
	}
	r.paymentEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordWebhookDelivery counts a provider callback by match outcome.
func (r *Recorder) RecordWebhookDelivery(ctx context.Context, provider, outcome string) {
	if r == nil {
		return
	}
	r.webhookDeliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
