// Package metrics exposes Prometheus collectors reporting training and
// inference progress.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anyskill"

// Reward signals reported by ObserveRewards
const (
	Combined = "combined"
	Task     = "task"
	Disc     = "disc"
	Style    = "style"
)

// Metrics holds the collectors of a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	rewardMean    *prometheus.GaugeVec
	rewardStd     *prometheus.GaugeVec
	episodeReward prometheus.Gauge
	episodeLength prometheus.Gauge
	frames        prometheus.Counter
	epochs        prometheus.Counter
	games         prometheus.Counter
}

// MustNewMetrics constructs Metrics registered with reg, or the default
// registerer if reg is nil. Collectors which are already registered
// are reused. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		rewardMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "reward_mean",
			Help:      "Mean reward of the last rollout batch.",
		}, []string{"signal"}),
		rewardStd: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "reward_std",
			Help:      "Standard deviation of the reward of the last rollout batch.",
		}, []string{"signal"}),
		episodeReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "episode_reward",
			Help:      "Running mean of the reward of finished episodes.",
		}),
		episodeLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "episode_length",
			Help:      "Running mean of the length of finished episodes.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "frames_total",
			Help:      "Number of decisions taken across all environments.",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "epochs_total",
			Help:      "Number of completed epochs.",
		}),
		games: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "play",
			Name:      "games_total",
			Help:      "Number of games finished during inference.",
		}),
	}

	m.rewardMean = register(reg, m.rewardMean)
	m.rewardStd = register(reg, m.rewardStd)
	m.episodeReward = register(reg, m.episodeReward)
	m.episodeLength = register(reg, m.episodeLength)
	m.frames = register(reg, m.frames)
	m.epochs = register(reg, m.epochs)
	m.games = register(reg, m.games)
	return m
}

// register registers c with reg, returning the existing collector if
// an equal one was already registered
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveRewards records the mean and standard deviation of a reward
// signal over the last batch
func (m *Metrics) ObserveRewards(signal string, mean, std float64) {
	if m == nil {
		return
	}
	m.rewardMean.WithLabelValues(signal).Set(mean)
	m.rewardStd.WithLabelValues(signal).Set(std)
}

// SetEpisodeStats records the running means of episode rewards and
// lengths
func (m *Metrics) SetEpisodeStats(reward, length float64) {
	if m == nil {
		return
	}
	m.episodeReward.Set(reward)
	m.episodeLength.Set(length)
}

// AddFrames adds n decisions to the frame counter
func (m *Metrics) AddFrames(n int) {
	if m == nil {
		return
	}
	m.frames.Add(float64(n))
}

// IncEpochs increments the epoch counter
func (m *Metrics) IncEpochs() {
	if m == nil {
		return
	}
	m.epochs.Inc()
}

// AddGames adds n finished games to the games counter
func (m *Metrics) AddGames(n int) {
	if m == nil {
		return
	}
	m.games.Add(float64(n))
}

// Handler returns an HTTP handler exposing the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
