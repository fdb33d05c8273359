package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	instrumentationName = "OTelDemo/pkg/database"

	spanKey      = "otel:span"
	startTimeKey = "otel:start_time"
)

// 移除 SQL 中的敏感字段
var sensitivePatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`(?i)password\s*=\s*'[^']*'`), "password='***'"},
	{regexp.MustCompile(`(?i)token\s*=\s*'[^']*'`), "token='***'"},
	{regexp.MustCompile(`(?i)secret\s*=\s*'[^']*'`), "secret='***'"},
}

// PluginConfig 插件配置
type PluginConfig struct {
	DBName          string
	EnableSQLParams bool
	EnableMetrics   bool
	MaxSQLLength    int
}

// DefaultPluginConfig 默认插件配置
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		DBName:          "oteldemo",
		EnableSQLParams: false, // 默认不记录 SQL 参数，避免敏感信息泄露
		EnableMetrics:   true,
		MaxSQLLength:    500,
	}
}

// OTELPlugin GORM OpenTelemetry 插件
type OTELPlugin struct {
	tracer trace.Tracer
	config PluginConfig

	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
}

// NewOTELPlugin 创建插件实例，tracer 和 meter 都由调用方注入
func NewOTELPlugin(config PluginConfig, tp trace.TracerProvider, mp metric.MeterProvider) (*OTELPlugin, error) {
	if config.MaxSQLLength <= 0 {
		config.MaxSQLLength = DefaultPluginConfig().MaxSQLLength
	}

	p := &OTELPlugin{
		tracer: tp.Tracer(instrumentationName),
		config: config,
	}

	if !config.EnableMetrics {
		return p, nil
	}

	meter := mp.Meter(instrumentationName)

	var err error
	p.queriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	p.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Name 实现 gorm.Plugin 接口
func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 注册回调
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	callbacks := db.Callback()

	if err := callbacks.Query().Before("gorm:query").Register("otel:before_query", p.beforeCallback); err != nil {
		return err
	}
	if err := callbacks.Query().After("gorm:query").Register("otel:after_query", p.afterCallback); err != nil {
		return err
	}

	if err := callbacks.Create().Before("gorm:create").Register("otel:before_create", p.beforeCallback); err != nil {
		return err
	}
	if err := callbacks.Create().After("gorm:create").Register("otel:after_create", p.afterCallback); err != nil {
		return err
	}

	if err := callbacks.Update().Before("gorm:update").Register("otel:before_update", p.beforeCallback); err != nil {
		return err
	}
	if err := callbacks.Update().After("gorm:update").Register("otel:after_update", p.afterCallback); err != nil {
		return err
	}

	if err := callbacks.Delete().Before("gorm:delete").Register("otel:before_delete", p.beforeCallback); err != nil {
		return err
	}
	if err := callbacks.Delete().After("gorm:delete").Register("otel:after_delete", p.afterCallback); err != nil {
		return err
	}

	if err := callbacks.Row().Before("gorm:row").Register("otel:before_row", p.beforeCallback); err != nil {
		return err
	}
	if err := callbacks.Row().After("gorm:row").Register("otel:after_row", p.afterCallback); err != nil {
		return err
	}

	if err := callbacks.Raw().Before("gorm:raw").Register("otel:before_raw", p.beforeCallback); err != nil {
		return err
	}
	return callbacks.Raw().After("gorm:raw").Register("otel:after_raw", p.afterCallback)
}

// beforeCallback SQL 还没生成，这里只开 span，语句在 afterCallback 中补充
func (p *OTELPlugin) beforeCallback(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := p.tracer.Start(ctx, "db."+operationOf(db),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("db.namespace", p.config.DBName),
		),
	)

	db.InstanceSet(startTimeKey, time.Now())
	db.InstanceSet(spanKey, span)

	db.Statement.Context = ctx
}

func (p *OTELPlugin) afterCallback(db *gorm.DB) {
	spanI, exists := db.InstanceGet(spanKey)
	if !exists {
		return
	}
	span, ok := spanI.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	var duration float64
	if startI, exists := db.InstanceGet(startTimeKey); exists {
		if start, ok := startI.(time.Time); ok {
			duration = time.Since(start).Seconds()
		}
	}

	span.SetName("db." + operationOf(db))
	span.SetAttributes(p.statementAttributes(db)...)
	p.setSpanStatus(span, db)

	if p.config.EnableMetrics {
		p.recordMetrics(db.Statement.Context, db, duration)
	}
}

// operationOf 从 SQL 中提取操作类型
func operationOf(db *gorm.DB) string {
	sql := strings.ToUpper(strings.TrimSpace(db.Statement.SQL.String()))
	switch {
	case sql == "":
		return "unknown"
	case strings.HasPrefix(sql, "SELECT"):
		return "select"
	case strings.HasPrefix(sql, "INSERT"):
		return "insert"
	case strings.HasPrefix(sql, "UPDATE"):
		return "update"
	case strings.HasPrefix(sql, "DELETE"):
		return "delete"
	default:
		return "query"
	}
}

func (p *OTELPlugin) statementAttributes(db *gorm.DB) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation.name", operationOf(db)),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	}

	if table := db.Statement.Table; table != "" {
		attrs = append(attrs, attribute.String("db.collection.name", table))
	}

	sql := truncateSQL(db.Statement.SQL.String(), p.config.MaxSQLLength)
	attrs = append(attrs, attribute.String("db.query.text", sanitizeSQL(sql)))

	// 只记录参数数量，不记录参数值
	if p.config.EnableSQLParams && len(db.Statement.Vars) > 0 {
		attrs = append(attrs, attribute.Int("db.parameter_count", len(db.Statement.Vars)))
	}

	return attrs
}

// truncateSQL 按字节截断，截断处落在多字节字符中间时丢弃残缺部分
func truncateSQL(sql string, limit int) string {
	if len(sql) <= limit {
		return sql
	}
	return strings.ToValidUTF8(sql[:limit], "") + "..."
}

// sanitizeSQL 只替换敏感字段，不改动语句其余部分的大小写
func sanitizeSQL(sql string) string {
	for _, p := range sensitivePatterns {
		sql = p.re.ReplaceAllString(sql, p.mask)
	}
	return sql
}

// setSpanStatus 记录不存在不算错误
func (p *OTELPlugin) setSpanStatus(span trace.Span, db *gorm.DB) {
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		span.SetStatus(codes.Ok, "record not found")
	default:
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}

func (p *OTELPlugin) recordMetrics(ctx context.Context, db *gorm.DB, duration float64) {
	status := "success"
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", operationOf(db)),
		attribute.String("db.status", status),
	)

	p.queriesTotal.Add(ctx, 1, attrs)
	p.queryDuration.Record(ctx, duration, attrs)
}

// WithOTELPlugin 为 GORM 添加 OpenTelemetry 插件
func WithOTELPlugin(db *gorm.DB, config PluginConfig, tp trace.TracerProvider, mp metric.MeterProvider) error {
	plugin, err := NewOTELPlugin(config, tp, mp)
	if err != nil {
		return err
	}
	return db.Use(plugin)
}
