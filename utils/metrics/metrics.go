// OpenTelemetry指标，未配置导出地址时使用noop实现
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const ServiceName = "agentsociety-signal"

var (
	// Meter 创建指标所用的Meter
	Meter metric.Meter = noop.NewMeterProvider().Meter(ServiceName)

	log = logrus.WithField("module", "metrics")
)

func init() {
	if err := initializeInstruments(); err != nil {
		log.Panicf("init noop instruments err: %v", err)
	}
}

// Init 根据配置启用OTLP HTTP导出
// 功能：创建周期导出的MeterProvider并重建所有指标
// 参数：ctx-上下文，c-指标配置
// 返回：关闭函数（总是非nil）与错误
// 说明：导出器创建失败时保留noop指标并返回错误，调用方只需记录日志
func Init(ctx context.Context, c config.Metrics) (func(), error) {
	if c.OTLPEndpoint == "" {
		log.Debug("otlp endpoint not set, metrics disabled")
		return func() {}, nil
	}
	u, err := url.Parse(c.OTLPEndpoint)
	if err != nil {
		return func() {}, fmt.Errorf("invalid otlp endpoint: %w", err)
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(u.Host)}
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlpmetrichttp.WithURLPath(u.Path))
	}
	if u.Scheme != "https" {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return func() {}, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	interval := time.Duration(c.Interval * float64(time.Second))
	if interval <= 0 {
		interval = 15 * time.Second
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
		)),
	)
	otelapi.SetMeterProvider(provider)
	Meter = provider.Meter(ServiceName)
	if err := initializeInstruments(); err != nil {
		return func() {}, fmt.Errorf("init instruments: %w", err)
	}
	log.Infof("metrics exported to %s every %v", c.OTLPEndpoint, interval)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.Errorf("shutdown meter provider err: %v", err)
		}
	}, nil
}
