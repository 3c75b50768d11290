// Package player runs a trained high-level policy conditioned on a
// live skill command. While games are played, a console reader may
// replace the skill command at any time; the new command takes effect
// at the next decision.
package player

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/anyskill/agent"
	"github.com/samuelfneumann/anyskill/environment"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/logging"
	"github.com/samuelfneumann/anyskill/rollout"
	"github.com/samuelfneumann/anyskill/skill"
)

// DefaultRewardLog is the default file per-game rewards are appended to
const DefaultRewardLog = "./output/hrl_reward.txt"

// Keys of environment.Info.Extra which report the outcome of a game
const (
	BattleWonKey = "battle_won"
	ScoresKey    = "scores"
)

// Config configures a Player
type Config struct {
	GamesNum      int  // Number of games
	GameLife      int  // Number of lives per game
	MaxSteps      int  // Maximum number of decisions per game
	NumAgents     int  // Number of agents sharing a done flag
	Deterministic bool // Act with the policy mean

	// File per-game rewards are appended to when the environment does
	// not report game outcomes. Empty disables the log.
	RewardLog string
}

// Summary describes the games played by a Player
type Summary struct {
	GamesPlayed int
	MeanReward  float64
	MeanSteps   float64

	// WinRate is set only if the environment reported game outcomes
	WinRate       float64
	HasGameResult bool
}

// Player plays games with a high-level policy whose latent actions are
// executed through a latent.Bridge
type Player struct {
	cfg    Config
	bridge *latent.Bridge
	policy agent.Policy
	cond   *skill.Conditioner
	reader *skill.Reader
	log    logrus.FieldLogger

	frameDir string
	frames   int
}

// Option configures a Player
type Option func(*Player)

// WithReader sets a Reader which is run concurrently with the games to
// update the skill command
func WithReader(r *skill.Reader) Option {
	return func(p *Player) {
		p.reader = r
	}
}

// WithLogger sets the logger of the Player
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Player) {
		p.log = log
	}
}

// WithFrames causes a frame of the environment to be saved to dir
// after every decision. The environment must implement
// environment.Renderer.
func WithFrames(dir string) Option {
	return func(p *Player) {
		p.frameDir = dir
	}
}

// New returns a new Player. The bridge should write the embedding of
// cond into observations, see latent.WithTaskSource.
func New(bridge *latent.Bridge, policy agent.Policy, cond *skill.Conditioner,
	cfg Config, opts ...Option) (*Player, error) {
	if cfg.GamesNum <= 0 || cfg.GameLife <= 0 {
		return nil, errors.Errorf("new: games and lives must be positive "+
			"(games=%v, lives=%v)", cfg.GamesNum, cfg.GameLife)
	}
	if cfg.MaxSteps <= 0 {
		return nil, errors.Errorf("new: max steps must be positive, "+
			"have %v", cfg.MaxSteps)
	}
	if cfg.NumAgents <= 0 {
		return nil, errors.Errorf("new: numAgents must be positive, "+
			"have %v", cfg.NumAgents)
	}

	p := &Player{cfg: cfg, bridge: bridge, policy: policy, cond: cond}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrDiscard(p.log)

	if p.frameDir != "" {
		if _, ok := bridge.Env().(environment.Renderer); !ok {
			return nil, errors.New("new: environment cannot be rendered")
		}
	}
	return p, nil
}

// Run plays games until GamesNum * GameLife games have finished. If
// the Player has a Reader, it runs until the games finish.
func (p *Player) Run(ctx context.Context) (Summary, error) {
	g, gctx := errgroup.WithContext(ctx)
	playCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if p.reader != nil {
		g.Go(func() error {
			return p.reader.Run(playCtx)
		})
	}

	var summary Summary
	g.Go(func() error {
		defer cancel()
		var err error
		summary, err = p.play(playCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		return summary, errors.Wrap(err, "run")
	}
	return summary, nil
}

// play runs all games
func (p *Player) play(ctx context.Context) (Summary, error) {
	if p.cfg.Deterministic {
		p.policy.Eval()
	} else {
		p.policy.Train()
	}

	env := p.bridge.Env()
	n := env.NumEnvs()
	nGames := p.cfg.GamesNum * p.cfg.GameLife

	var rnn *rollout.RNNState
	if rec, ok := p.policy.(agent.Recurrent); ok {
		rnn = rollout.NewRNNState(rec.InitialStates(n))
	}

	var sumRewards, sumSteps, sumGameRes float64
	var hasGameResult bool
	gamesPlayed := 0

	for game := 0; game < nGames && gamesPlayed < nGames; game++ {
		obs, err := env.Reset()
		if err != nil {
			return Summary{}, errors.Wrap(err, "play")
		}

		cr := make([]float64, n)
		steps := make([]float64, n)
		var doneIndices []int

		for step := 0; step < p.cfg.MaxSteps; step++ {
			if err := ctx.Err(); err != nil {
				return Summary{}, errors.Wrap(err, "play")
			}

			if len(doneIndices) > 0 {
				if obs, err = env.ResetDone(doneIndices); err != nil {
					return Summary{}, errors.Wrap(err, "play")
				}
			}

			res, err := p.decide(ctx, obs, rnn)
			if err != nil {
				return Summary{}, errors.Wrapf(err, "play: game %v step %v",
					game, step)
			}
			obs = res.Obs

			for i := range cr {
				cr[i] += res.Rewards[i]
				steps[i]++
			}
			if err := p.render(); err != nil {
				return Summary{}, errors.Wrap(err, "play")
			}

			allDone := rollout.AllDoneIndices(res.Dones)
			doneIndices = rollout.DoneIndices(res.Dones, p.cfg.NumAgents)
			doneCount := len(doneIndices)
			gamesPlayed += doneCount
			if doneCount == 0 {
				continue
			}

			if rnn != nil {
				rnn.ResetRows(allDone)
			}

			var curRewards, curSteps float64
			for _, i := range doneIndices {
				curRewards += cr[i]
				curSteps += steps[i]
			}
			for i, done := range res.Dones {
				cr[i] *= 1 - done
				steps[i] *= 1 - done
			}
			sumRewards += curRewards
			sumSteps += curSteps

			gameRes, ok := gameResult(res.Info)
			log := p.log.WithFields(logrus.Fields{
				"reward": curRewards / float64(doneCount),
				"steps":  curSteps / float64(doneCount),
				"skill":  p.cond.Command(),
			})
			if ok {
				hasGameResult = true
				log.WithField("w", gameRes).Info("game finished")
			} else {
				log.Info("game finished")
				if err := p.appendReward(curRewards /
					float64(doneCount)); err != nil {
					return Summary{}, errors.Wrap(err, "play")
				}
			}
			sumGameRes += gameRes

			if n/p.cfg.NumAgents == 1 || gamesPlayed >= nGames {
				break
			}
		}
	}

	summary := Summary{GamesPlayed: gamesPlayed}
	if gamesPlayed > 0 {
		scale := float64(p.cfg.GameLife) / float64(gamesPlayed)
		summary.MeanReward = sumRewards * scale
		summary.MeanSteps = sumSteps * scale
		if hasGameResult {
			summary.HasGameResult = true
			summary.WinRate = sumGameRes * scale
		}
	}
	return summary, nil
}

// decide takes a single high-level decision. The skill command is
// observed once, before the policy acts.
func (p *Player) decide(ctx context.Context, obs *mat.Dense,
	rnn *rollout.RNNState) (latent.Result, error) {
	if _, err := p.cond.Refresh(ctx); err != nil {
		return latent.Result{}, err
	}
	if err := p.bridge.Inject(obs); err != nil {
		return latent.Result{}, err
	}

	var states []*mat.Dense
	if rnn != nil {
		states = rnn.States()
	}
	out, err := p.policy.ActionValues(obs, states)
	if err != nil {
		return latent.Result{}, err
	}
	if rnn != nil && out.States != nil {
		rnn.Set(out.States)
	}

	action := out.Actions
	if p.cfg.Deterministic {
		action = out.Mus
	}
	return p.bridge.Step(obs, latent.Clamp(nil, action))
}

// gameResult returns the outcome of a game if the environment reported
// one. Scores take precedence over wins.
func gameResult(info environment.Info) (float64, bool) {
	if info.Extra == nil {
		return 0, false
	}
	if v, ok := info.Extra[ScoresKey]; ok {
		return v, true
	}
	if v, ok := info.Extra[BattleWonKey]; ok {
		return v, true
	}
	return 0, false
}

// appendReward appends a line to the reward log
func (p *Player) appendReward(r float64) error {
	if p.cfg.RewardLog == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.cfg.RewardLog), 0o755); err != nil {
		return errors.Wrap(err, "appendReward")
	}
	f, err := os.OpenFile(p.cfg.RewardLog,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "appendReward")
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, r); err != nil {
		return errors.Wrap(err, "appendReward")
	}
	return f.Close()
}

// render saves a frame of the environment if frames were requested
func (p *Player) render() error {
	if p.frameDir == "" {
		return nil
	}
	img, err := p.bridge.Env().(environment.Renderer).Render()
	if err != nil {
		return errors.Wrap(err, "render")
	}
	if err := os.MkdirAll(p.frameDir, 0o755); err != nil {
		return errors.Wrap(err, "render")
	}
	path := filepath.Join(p.frameDir, fmt.Sprintf("frame_%06d.png", p.frames))
	p.frames++
	return errors.Wrap(gg.SavePNG(path, img), "render")
}
