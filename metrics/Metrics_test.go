package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.ObserveRewards(Style, 0.75, 0.1)
	m.SetEpisodeStats(12, 30)
	m.AddFrames(64)
	m.IncEpochs()
	m.AddGames(2)

	assert.Equal(t, 0.75, testutil.ToFloat64(m.rewardMean.WithLabelValues(Style)))
	assert.Equal(t, 0.1, testutil.ToFloat64(m.rewardStd.WithLabelValues(Style)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.episodeReward))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.episodeLength))
	assert.Equal(t, 64.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.epochs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.games))
}

func TestMetricsReuseRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := MustNewMetrics(reg)
	b := MustNewMetrics(reg)

	a.AddFrames(3)
	b.AddFrames(4)
	assert.Equal(t, 7.0, testutil.ToFloat64(b.frames))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRewards(Combined, 1, 1)
		m.SetEpisodeStats(1, 1)
		m.AddFrames(1)
		m.IncEpochs()
		m.AddGames(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.ObserveRewards(Combined, 2, 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(),
		`anyskill_train_reward_mean{signal="combined"} 2`))
}
