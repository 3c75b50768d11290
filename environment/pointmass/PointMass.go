// Package pointmass implements a vectorized point-mass environment
// simulated with Box2D. Each instance is a small body which is pushed
// around a plane by a two dimensional force and rewarded for reaching
// a goal. The environment exposes the full vectorized contract,
// including motion-observation windows and demonstration clips, so that
// a hierarchical controller can be run end to end without an external
// simulator.
package pointmass

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/anyskill/environment"
	"github.com/samuelfneumann/anyskill/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	// TaskName is the name this environment is registered under
	TaskName = "PointMass"

	StateSize  = 4 // x, y, ẋ, ẏ
	ActionSize = 2
	AMPSteps   = 2 // Number of states in a motion-observation window

	MaxForce = 5.0
	Bound    = 4.0 // Episodes terminate when a body leaves [-Bound, Bound]²
	GoalArea = 2.0
	FPS      = 30.0

	Scale    = 60.0 // Pixels per metre when rendering
	BodySize = 0.1
)

func init() {
	environment.Register(TaskName, func(c environment.Config) (environment.VecEnv, error) {
		return New(c.NumEnvs, c.EpisodeLength, c.TaskObsSize, c.Seed)
	})
}

// PointMass implements the vectorized point-mass environment
type PointMass struct {
	numEnvs       int
	episodeLength int
	taskSize      int

	world  box2d.B2World
	bodies []*box2d.B2Body

	goals      *mat.Dense // numEnvs x 2
	steps      []int
	ampHistory *mat.Dense // numEnvs x AMPSteps*StateSize

	starter     *environment.UniformStarter
	goalStarter *environment.UniformStarter
	rng         *rand.Rand

	obsSpec environment.Spec
	actSpec environment.Spec
}

// New returns a new PointMass environment with numEnvs instances. Each
// episode lasts at most episodeLength steps. The trailing taskSize
// elements of every observation hold the goal position, padded with
// zeros.
func New(numEnvs, episodeLength, taskSize int, seed uint64) (*PointMass, error) {
	if numEnvs <= 0 {
		return nil, fmt.Errorf("new: number of environments must be " +
			"positive")
	}
	if episodeLength <= 0 {
		return nil, fmt.Errorf("new: episode length must be positive")
	}
	if taskSize < 0 {
		return nil, fmt.Errorf("new: task observation size must be " +
			"non-negative")
	}

	start := r1.Interval{Min: -0.5, Max: 0.5}
	goal := r1.Interval{Min: -GoalArea, Max: GoalArea}

	obsLow := make([]float64, StateSize+taskSize)
	obsHigh := make([]float64, StateSize+taskSize)
	for i := range obsLow {
		obsLow[i] = math.Inf(-1)
		obsHigh[i] = math.Inf(1)
	}

	p := &PointMass{
		numEnvs:       numEnvs,
		episodeLength: episodeLength,
		taskSize:      taskSize,
		world:         box2d.MakeB2World(box2d.MakeB2Vec2(0.0, 0.0)),
		bodies:        make([]*box2d.B2Body, numEnvs),
		goals:         mat.NewDense(numEnvs, 2, nil),
		steps:         make([]int, numEnvs),
		ampHistory:    mat.NewDense(numEnvs, AMPSteps*StateSize, nil),
		starter: environment.NewUniformStarter(
			[]r1.Interval{start, start}, seed),
		goalStarter: environment.NewUniformStarter(
			[]r1.Interval{goal, goal}, seed+1),
		rng:     rand.New(rand.NewSource(seed + 2)),
		obsSpec: environment.NewSpec(environment.Observation, obsLow, obsHigh),
		actSpec: environment.NewSpec(environment.Action,
			[]float64{-MaxForce, -MaxForce}, []float64{MaxForce, MaxForce}),
	}

	for i := range p.bodies {
		p.bodies[i] = p.createBody()
	}

	return p, nil
}

// createBody adds a new dynamic body to the world. Bodies share a
// negative collision group so that instances never interact.
func (p *PointMass) createBody() *box2d.B2Body {
	bodyDef := box2d.MakeB2BodyDef()
	bodyDef.Type = 2 // Dynamic body
	bodyDef.Position = box2d.MakeB2Vec2(0.0, 0.0)
	bodyDef.LinearDamping = 0.5
	bodyDef.FixedRotation = true
	body := p.world.CreateBody(&bodyDef)

	shape := box2d.NewB2PolygonShape()
	shape.SetAsBox(BodySize, BodySize)

	filter := box2d.MakeB2Filter()
	filter.GroupIndex = -1

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = 1.0
	fix.Filter = filter
	body.CreateFixtureFromDef(&fix)

	return body
}

// NumEnvs returns the number of instances
func (p *PointMass) NumEnvs() int { return p.numEnvs }

// ObservationSpec returns the observation specification
func (p *PointMass) ObservationSpec() environment.Spec { return p.obsSpec }

// ActionSpec returns the action specification
func (p *PointMass) ActionSpec() environment.Spec { return p.actSpec }

// TaskObsSize returns the length of the task slot
func (p *PointMass) TaskObsSize() int { return p.taskSize }

// AMPObsSize returns the width of a motion-observation window
func (p *PointMass) AMPObsSize() int { return AMPSteps * StateSize }

// Reset resets all instances
func (p *PointMass) Reset() (*mat.Dense, error) {
	for i := 0; i < p.numEnvs; i++ {
		p.resetInstance(i)
	}
	return p.observation(), nil
}

// ResetDone resets the instances in envIDs
func (p *PointMass) ResetDone(envIDs []int) (*mat.Dense, error) {
	for _, i := range envIDs {
		if i < 0 || i >= p.numEnvs {
			return nil, fmt.Errorf("resetDone: environment index %v out of "+
				"range [0, %v)", i, p.numEnvs)
		}
		p.resetInstance(i)
	}
	return p.observation(), nil
}

func (p *PointMass) resetInstance(i int) {
	start := p.starter.Start(nil)
	p.bodies[i].SetTransform(box2d.MakeB2Vec2(start[0], start[1]), 0.0)
	p.bodies[i].SetLinearVelocity(box2d.MakeB2Vec2(0.0, 0.0))
	p.bodies[i].SetAwake(true)

	p.goals.SetRow(i, p.goalStarter.Start(nil))
	p.steps[i] = 0

	state := p.state(i)
	for k := 0; k < AMPSteps; k++ {
		for j, v := range state {
			p.ampHistory.Set(i, k*StateSize+j, v)
		}
	}
}

// Step applies one force per instance and advances the simulation by
// a single frame.
func (p *PointMass) Step(actions *mat.Dense) (environment.Step, error) {
	r, c := actions.Dims()
	if r != p.numEnvs || c != ActionSize {
		return environment.Step{}, fmt.Errorf("step: illegal action shape "+
			"\n\twant(%v, %v)\n\thave(%v, %v)", p.numEnvs, ActionSize, r, c)
	}

	for i, body := range p.bodies {
		fx := floatutils.Clip(actions.At(i, 0), -MaxForce, MaxForce)
		fy := floatutils.Clip(actions.At(i, 1), -MaxForce, MaxForce)
		body.ApplyForceToCenter(box2d.MakeB2Vec2(fx, fy), true)
	}
	p.world.Step(1.0/FPS, 6, 2)

	rewards := make([]float64, p.numEnvs)
	dones := make([]float64, p.numEnvs)
	terminate := make([]float64, p.numEnvs)
	for i := 0; i < p.numEnvs; i++ {
		p.steps[i]++
		p.pushHistory(i)

		pos := p.bodies[i].GetPosition()
		dist := math.Hypot(pos.X-p.goals.At(i, 0), pos.Y-p.goals.At(i, 1))
		rewards[i] = math.Exp(-dist)

		if math.Abs(pos.X) > Bound || math.Abs(pos.Y) > Bound {
			terminate[i] = 1.0
			dones[i] = 1.0
		} else if p.steps[i] >= p.episodeLength {
			dones[i] = 1.0
		}
	}

	return environment.Step{
		Obs:     p.observation(),
		Rewards: rewards,
		Dones:   dones,
		Info: environment.Info{
			AMPObs:    mat.DenseCopyOf(p.ampHistory),
			Terminate: terminate,
		},
	}, nil
}

// pushHistory shifts the motion window of instance i by one state
func (p *PointMass) pushHistory(i int) {
	row := p.ampHistory.RawRowView(i)
	copy(row[StateSize:], row[:len(row)-StateSize])
	copy(row[:StateSize], p.state(i))
}

// state returns the physical state of instance i
func (p *PointMass) state(i int) []float64 {
	pos := p.bodies[i].GetPosition()
	vel := p.bodies[i].GetLinearVelocity()
	return []float64{pos.X, pos.Y, vel.X, vel.Y}
}

// observation constructs the observation batch. The task slot holds
// the goal position followed by zero padding.
func (p *PointMass) observation() *mat.Dense {
	obs := mat.NewDense(p.numEnvs, StateSize+p.taskSize, nil)
	for i := 0; i < p.numEnvs; i++ {
		row := obs.RawRowView(i)
		copy(row, p.state(i))
		for j := 0; j < p.taskSize && j < 2; j++ {
			row[StateSize+j] = p.goals.At(i, j)
		}
	}
	return obs
}

// FetchAMPObsDemo samples n motion-observation windows from synthetic
// demonstration clips of bodies moving along circles at constant
// angular speed.
func (p *PointMass) FetchAMPObsDemo(n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("fetchAMPObsDemo: number of samples must " +
			"be positive")
	}

	demo := mat.NewDense(n, AMPSteps*StateSize, nil)
	for i := 0; i < n; i++ {
		radius := 0.5 + 1.5*p.rng.Float64()
		phase := 2 * math.Pi * p.rng.Float64()
		speed := (p.rng.Float64()*2 - 1) * math.Pi

		row := demo.RawRowView(i)
		for k := 0; k < AMPSteps; k++ {
			// Most recent state first, matching pushHistory
			theta := phase - float64(k)*speed/FPS
			row[k*StateSize] = radius * math.Cos(theta)
			row[k*StateSize+1] = radius * math.Sin(theta)
			row[k*StateSize+2] = -radius * speed * math.Sin(theta)
			row[k*StateSize+3] = radius * speed * math.Cos(theta)
		}
	}
	return demo, nil
}

// Render draws every instance and its goal onto a single image
func (p *PointMass) Render() (image.Image, error) {
	size := int(2 * Bound * Scale)
	dc := gg.NewContext(size, size)
	dc.SetColor(color.White)
	dc.Clear()

	toPixel := func(x, y float64) (float64, float64) {
		return (x + Bound) * Scale, (Bound - y) * Scale
	}

	for i, body := range p.bodies {
		gx, gy := toPixel(p.goals.At(i, 0), p.goals.At(i, 1))
		dc.SetRGB(0.8, 0.2, 0.2)
		dc.DrawLine(gx-5, gy-5, gx+5, gy+5)
		dc.DrawLine(gx-5, gy+5, gx+5, gy-5)
		dc.SetLineWidth(2.0)
		dc.Stroke()

		pos := body.GetPosition()
		bx, by := toPixel(pos.X, pos.Y)
		dc.SetRGB(0.2, 0.3, 0.8)
		dc.DrawCircle(bx, by, BodySize*Scale)
		dc.Fill()
	}
	return dc.Image(), nil
}

