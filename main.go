package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/anyskill/agent/gaussian"
	"github.com/samuelfneumann/anyskill/config"
	"github.com/samuelfneumann/anyskill/environment"
	"github.com/samuelfneumann/anyskill/experiment"
	"github.com/samuelfneumann/anyskill/experiment/checkpointer"
	"github.com/samuelfneumann/anyskill/experiment/tracker"
	"github.com/samuelfneumann/anyskill/latent"
	"github.com/samuelfneumann/anyskill/llc"
	"github.com/samuelfneumann/anyskill/logging"
	"github.com/samuelfneumann/anyskill/metrics"
	"github.com/samuelfneumann/anyskill/player"
	"github.com/samuelfneumann/anyskill/rollout"
	"github.com/samuelfneumann/anyskill/skill"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by all commands
type app struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	log        *logrus.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "anyskill",
		Short: "Hierarchical control of a frozen low-level skill controller",
		Long: `anyskill trains and runs a high-level policy which selects latent
skills for a frozen pretrained low-level controller, conditioned on a
natural-language skill command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Run configuration file")
	flags.String("llc-config", "", "Low-level controller architecture (YAML)")
	flags.String("llc-checkpoint", "", "Low-level controller checkpoint")
	flags.Int("llc-steps", 0, "Low-level steps per high-level decision")
	flags.String("task", "", "Registered task name")
	flags.String("log-level", "", "Log level")
	// Flags override the configuration file only when set
	a.v.BindPFlag("llc.config_file", flags.Lookup("llc-config"))
	a.v.BindPFlag("llc.checkpoint", flags.Lookup("llc-checkpoint"))
	a.v.BindPFlag("llc.steps", flags.Lookup("llc-steps"))
	a.v.BindPFlag("task.name", flags.Lookup("task"))
	a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(newTrainCommand(a))
	rootCmd.AddCommand(newPlayCommand(a))
	rootCmd.AddCommand(newInitLLCCommand(a))
	return rootCmd
}

// initialize loads the configuration and builds the logger
func (a *app) initialize() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// newEnv creates the configured task
func (a *app) newEnv() (environment.VecEnv, error) {
	return environment.New(a.cfg.Task.Name, environment.Config{
		NumEnvs:       a.cfg.Task.NumEnvs,
		EpisodeLength: a.cfg.Task.EpisodeLength,
		TaskObsSize:   a.cfg.Task.TaskSize,
		Seed:          a.cfg.Task.Seed,
	})
}

// newConditioner returns a conditioner encoding cmd with a cached hash
// encoder sized to the task slot
func (a *app) newConditioner(ctx context.Context,
	cmd *skill.Command) (*skill.Conditioner, error) {
	hash, err := skill.NewHashEncoder(a.cfg.Task.TaskSize)
	if err != nil {
		return nil, err
	}
	enc, err := skill.NewCachedEncoder(hash, a.cfg.Skill.CacheSize)
	if err != nil {
		return nil, err
	}
	return skill.NewConditioner(ctx, cmd, enc, a.log)
}

// policyPath returns the file the high-level policy is saved to and
// loaded from
func (a *app) policyPath() string {
	if a.cfg.Output.Policy != "" {
		return a.cfg.Output.Policy
	}
	return filepath.Join(a.cfg.Output.Dir, "hlc.gob")
}

// checkpointNames returns the filenames policy checkpoints are written
// to during training
func (a *app) checkpointNames() func() string {
	if a.cfg.Train.KeepCheckpoints {
		return checkpointer.FileTimer(filepath.Join(a.cfg.Output.Dir, "hlc"),
			".gob")
	}
	return checkpointer.Constant(a.policyPath())
}

// serveMetrics serves reg on the configured address until ctx is done
func (a *app) serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	a.log.WithField("addr", a.cfg.Metrics.Addr).Info("serving metrics")
}

func newTrainCommand(a *app) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Collect rollouts with the high-level policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer stop()
			return a.train(ctx, progress)
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false,
		"Display a progress bar on standard output")
	return cmd
}

func (a *app) train(ctx context.Context, progress bool) error {
	cfg := a.cfg
	env, err := a.newEnv()
	if err != nil {
		return err
	}
	controller, err := llc.Load(llc.LoadConfig{
		ConfigFile:  cfg.LLC.ConfigFile,
		Checkpoint:  cfg.LLC.Checkpoint,
		EncodeBatch: cfg.LLC.EncodeBatch,
	}, env)
	if err != nil {
		return err
	}

	var bridgeOpts []latent.BridgeOption
	if cfg.Task.TaskSize > 0 {
		cond, err := a.newConditioner(ctx, skill.NewCommand(cfg.Skill.Command))
		if err != nil {
			return err
		}
		bridgeOpts = append(bridgeOpts, latent.WithTaskSource(cond))
	}
	bridge, err := latent.NewBridge(env, controller, cfg.LLC.Steps,
		bridgeOpts...)
	if err != nil {
		return err
	}
	stepper, err := rollout.NewHierarchical(bridge,
		controller.EncodedReference())
	if err != nil {
		return err
	}

	policy, err := gaussian.New(cfg.Policy, env.ObservationSpec().Len(),
		controller.LatentDim(), env.NumEnvs())
	if err != nil {
		return err
	}

	rewards, err := tracker.NewMean(cfg.Train.TrackerWindow)
	if err != nil {
		return err
	}
	lengths, err := tracker.NewMean(cfg.Train.TrackerWindow)
	if err != nil {
		return err
	}

	driver, err := rollout.NewDriver(stepper, policy, rollout.Config{
		Horizon:            cfg.Train.Horizon,
		NumAgents:          cfg.NumAgents,
		Gamma:              cfg.Train.Gamma,
		Tau:                cfg.Train.Tau,
		Weights:            cfg.Train.Weights,
		NormalizeAdvantage: cfg.Train.NormalizeAdvantage,
		ActionDump:         cfg.Output.ActionDump,
	}, rollout.WithTrackers(rewards, lengths), rollout.WithLogger(a.log))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	a.serveMetrics(ctx, reg)

	opts := []experiment.TrainerOption{
		experiment.WithEpisodeTrackers(rewards, lengths, cfg.Output.Dir),
		experiment.WithMetrics(metrics.MustNewMetrics(reg)),
		experiment.WithLogger(a.log),
	}
	if cfg.Train.CheckpointEvery > 0 {
		c, err := checkpointer.NewNStep(cfg.Train.CheckpointEvery, policy,
			a.checkpointNames())
		if err != nil {
			return err
		}
		opts = append(opts, experiment.WithCheckpointers(c))
	}
	if progress {
		opts = append(opts, experiment.WithProgressBar(os.Stdout, 50))
	}

	trainer, err := experiment.NewTrainer(driver, experiment.StatsUpdater{},
		cfg.Train.Epochs, opts...)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"task":      cfg.Task.Name,
		"envs":      env.NumEnvs(),
		"llc_steps": cfg.LLC.Steps,
		"epochs":    cfg.Train.Epochs,
	}).Info("training started")

	if _, err := trainer.Run(ctx); err != nil {
		return err
	}
	return policy.Save(a.policyPath())
}

func newPlayCommand(a *app) *cobra.Command {
	var console bool
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play games, reading skill commands from the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
				syscall.SIGTERM)
			defer stop()
			return a.play(ctx, console)
		},
	}
	cmd.Flags().BoolVar(&console, "console", true,
		"Read skill commands from the console")
	return cmd
}

func (a *app) play(ctx context.Context, console bool) error {
	cfg := a.cfg
	env, err := a.newEnv()
	if err != nil {
		return err
	}
	controller, err := llc.Load(llc.LoadConfig{
		ConfigFile:  cfg.LLC.ConfigFile,
		Checkpoint:  cfg.LLC.Checkpoint,
		EncodeBatch: cfg.LLC.EncodeBatch,
	}, env, llc.WithActionBounds(env.ActionSpec()))
	if err != nil {
		return err
	}

	cmd := skill.NewCommand(cfg.Skill.Command)
	cond, err := a.newConditioner(ctx, cmd)
	if err != nil {
		return err
	}
	bridge, err := latent.NewBridge(env, controller, cfg.LLC.Steps,
		latent.WithTaskSource(cond))
	if err != nil {
		return err
	}

	policy, err := gaussian.New(cfg.Policy, env.ObservationSpec().Len(),
		controller.LatentDim(), env.NumEnvs())
	if err != nil {
		return err
	}
	path := a.policyPath()
	if err := policy.Load(path); err != nil {
		return errors.Wrapf(err, "play: could not load the high-level "+
			"policy from %v, run train first", path)
	}
	a.log.WithField("policy", path).Info("loaded high-level policy")

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)
	a.serveMetrics(ctx, reg)

	opts := []player.Option{player.WithLogger(a.log)}
	if console {
		src, err := skill.NewConsole()
		if err != nil {
			return err
		}
		opts = append(opts, player.WithReader(skill.NewReader(src, cmd, a.log)))
	}
	if cfg.Output.Frames != "" {
		opts = append(opts, player.WithFrames(cfg.Output.Frames))
	}

	p, err := player.New(bridge, policy, cond, player.Config{
		GamesNum:      cfg.Play.GamesNum,
		GameLife:      cfg.Play.GameLife,
		MaxSteps:      cfg.Play.MaxSteps,
		NumAgents:     cfg.NumAgents,
		Deterministic: cfg.Play.Deterministic,
		RewardLog:     cfg.Output.RewardLog,
	}, opts...)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}
	m.AddGames(summary.GamesPlayed)

	fields := logrus.Fields{
		"games":  summary.GamesPlayed,
		"reward": summary.MeanReward,
		"steps":  summary.MeanSteps,
	}
	if summary.HasGameResult {
		fields["win_rate"] = summary.WinRate
	}
	a.log.WithFields(fields).Info("games finished")
	return nil
}

func newInitLLCCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-llc",
		Short: "Write an untrained low-level controller checkpoint for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.initLLC()
		},
	}
}

func (a *app) initLLC() error {
	cfg := a.cfg
	env, err := a.newEnv()
	if err != nil {
		return err
	}
	llcConfig, err := llc.ReadConfig(cfg.LLC.ConfigFile)
	if err != nil {
		return err
	}

	obsSize := env.ObservationSpec().Len() - env.TaskObsSize()
	ckpt, err := llc.NewRandom(llcConfig, obsSize, env.ActionSpec().Len(),
		env.AMPObsSize())
	if err != nil {
		return err
	}
	if err := ckpt.Save(cfg.LLC.Checkpoint); err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"task":       cfg.Task.Name,
		"checkpoint": cfg.LLC.Checkpoint,
		"latent_dim": ckpt.LatentDim,
	}).Info("wrote untrained low-level controller")
	return nil
}
