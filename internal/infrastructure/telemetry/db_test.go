package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type widget struct {
	ID   uint
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&widget{}))
	return db
}

func TestInstrumentDB_Tracing(t *testing.T) {
	recorder := installRecorder(t)
	db := openSQLite(t)

	require.NoError(t, InstrumentDB(db, nil, DBConfig{Tracing: true, DBName: "sqlite"}, zaptest.NewLogger(t)))

	ctx, span := StartSpan(context.Background(), "test", "insert")
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "gear"}).Error)
	span.End()

	names := make([]string, 0)
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "test.insert")
	assert.Greater(t, len(names), 1, "expected a database span next to the parent span")
}

func TestInstrumentDB_PoolGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	db := openSQLite(t)
	require.NoError(t, InstrumentDB(db, provider.Meter("test"), DBConfig{}, nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	assert.True(t, found["db_pool_open_connections"])
	assert.True(t, found["db_pool_in_use_connections"])
	assert.True(t, found["db_pool_wait_count"])
}
