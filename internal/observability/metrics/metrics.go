package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes storage-level instruments.
type Metrics struct {
	paymentsPersisted metric.Int64Counter
	depositsTracked   metric.Int64Counter
	syncOutgoing      metric.Int64Counter
	syncIncoming      metric.Int64Counter
	migrationsApplied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sparkstore"
	}
	meter := provider.Meter(name)

	paymentsPersisted, err := meter.Int64Counter("sparkstore_payments_persisted_total")
	if err != nil {
		return nil, err
	}
	depositsTracked, err := meter.Int64Counter("sparkstore_deposits_tracked_total")
	if err != nil {
		return nil, err
	}
	syncOutgoing, err := meter.Int64Counter("sparkstore_sync_outgoing_total")
	if err != nil {
		return nil, err
	}
	syncIncoming, err := meter.Int64Counter("sparkstore_sync_incoming_total")
	if err != nil {
		return nil, err
	}
	migrationsApplied, err := meter.Int64Counter("sparkstore_migrations_applied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentsPersisted: paymentsPersisted,
		depositsTracked:   depositsTracked,
		syncOutgoing:      syncOutgoing,
		syncIncoming:      syncIncoming,
		migrationsApplied: migrationsApplied,
	}, nil
}

// RecordPaymentPersisted increments persisted payment counts.
func (m *Metrics) RecordPaymentPersisted(ctx context.Context, detailsType string) {
	if m == nil {
		return
	}
	m.paymentsPersisted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("details_type", strings.TrimSpace(detailsType)),
	))
}

// RecordDepositTracked increments tracked deposit counts.
func (m *Metrics) RecordDepositTracked(ctx context.Context) {
	if m == nil {
		return
	}
	m.depositsTracked.Add(ctx, 1)
}

// RecordSyncOutgoing increments queued outgoing change counts.
func (m *Metrics) RecordSyncOutgoing(ctx context.Context, recordType string) {
	if m == nil {
		return
	}
	m.syncOutgoing.Add(ctx, 1, metric.WithAttributes(
		attribute.String("record_type", strings.TrimSpace(recordType)),
	))
}

// RecordSyncIncoming increments received incoming record counts.
func (m *Metrics) RecordSyncIncoming(ctx context.Context, recordType string) {
	if m == nil {
		return
	}
	m.syncIncoming.Add(ctx, 1, metric.WithAttributes(
		attribute.String("record_type", strings.TrimSpace(recordType)),
	))
}

// RecordMigrationApplied increments applied migration counts.
func (m *Metrics) RecordMigrationApplied(ctx context.Context, version int) {
	if m == nil {
		return
	}
	m.migrationsApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("version", version),
	))
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
