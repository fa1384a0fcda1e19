package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucs-fleet/livemap/pkg/core"
)

func lineProtocol(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestFleetStatsPoint(t *testing.T) {
	p := FleetStatsPoint(core.FleetStats{Total: 8, Flying: 3, LowBattery: 1, Abnormal: 2}, time.Now())
	line := lineProtocol(p)

	assert.True(t, strings.HasPrefix(line, "fleet_stats "), line)
	assert.Contains(t, line, "total=8i")
	assert.Contains(t, line, "flying=3i")
	assert.Contains(t, line, "low_battery=1i")
	assert.Contains(t, line, "abnormal=2i")
}

func TestStreamHealthPoint(t *testing.T) {
	up := lineProtocol(StreamHealthPoint(true, time.Now()))
	down := lineProtocol(StreamHealthPoint(false, time.Now()))

	assert.Contains(t, up, "connected=1i")
	assert.Contains(t, down, "connected=0i")
}

func TestReconcilePoint(t *testing.T) {
	p := ReconcilePoint("snapshot", 2, 5, 1, 1500*time.Microsecond, time.Now())
	line := lineProtocol(p)

	assert.True(t, strings.HasPrefix(line, "reconcile_pass,source=snapshot "), line)
	assert.Contains(t, line, "added=2i")
	assert.Contains(t, line, "changed=5i")
	assert.Contains(t, line, "removed=1i")
	assert.Contains(t, line, "elapsed_us=1500i")
}

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), "")
	err := m.Connect()
	require.Error(t, err)
}

func TestWritePoint_BackupWriter(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.Nop(), "")
	m.BackupWriter = gzip.NewWriter(&buf)

	err := m.WriteFleetStats(context.Background(), core.FleetStats{Total: 4, Flying: 2})
	require.NoError(t, err)
	require.NoError(t, m.BackupWriter.Close())

	r, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Contains(t, string(data), "fleet_stats ")
	assert.Contains(t, string(data), "total=4i")
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), BucketFleet, FleetStatsPoint(core.FleetStats{}, time.Now()))
	require.Error(t, err)
}

func TestWritePoint_UnknownBucket(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	m.IsValid = true
	err := m.WritePoint(context.Background(), "nope", FleetStatsPoint(core.FleetStats{}, time.Now()))
	require.Error(t, err)
}
