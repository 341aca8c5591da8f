// Linear delta kinematics for rail-based (Kossel-style) robots.
//
// Three vertical towers sit on a circle of radius r, 120 degrees apart:
// tower A at (x=0, y=+r), tower B at (x>0, y<0), tower C at (x<0, y<0).
// Each tower carries a carriage linked to the end effector by an arm of
// length L. The natural closed form for a delta is the inverse direction
// (cartesian to carriage heights); recovering cartesian position from
// carriage heights means intersecting the three arm spheres, solved here in
// closed form with explicit degenerate branches.
package kinematics

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"printipi-go/pkg/log"
)

// MinZ is the lowest allowed z, slightly below the nominal bed plane so a
// machine can be tuned with small negative offsets.
const MinZ = -2.0

// DeltaConfig holds the geometry of one linear delta machine. All lengths
// are millimeters. Immutable after construction.
type DeltaConfig struct {
	Radius             float64 // rail-to-center distance r
	ArmLength          float64 // arm length L, must exceed Radius
	Height             float64 // carriage height h at the endstops
	BuildRadius        float64 // usable build-plate radius
	StepsPerMM         float64 // tower steps per millimeter
	ExtruderStepsPerMM float64 // extruder steps per millimeter
	BedLevel           BedLevel // nil means identity
}

// LinearDelta implements CoordMap for the delta geometry.
type LinearDelta struct {
	r        float64
	l        float64
	h        float64
	buildRad float64
	stepsMM  float64
	mmSteps  float64
	stepsMME float64
	mmStepsE float64
	towers   [3][2]float64
	bedLevel BedLevel
	logger   *zap.SugaredLogger
}

// NewLinearDelta validates the geometry and returns the coordinate mapper.
// The validation here is the configuration-time boundary: past it, every
// transform is a total function.
func NewLinearDelta(cfg DeltaConfig, logger *zap.SugaredLogger) (*LinearDelta, error) {
	if cfg.Radius < 0 {
		return nil, fmt.Errorf("kinematics: delta radius %.3f must be non-negative", cfg.Radius)
	}
	if cfg.ArmLength <= cfg.Radius {
		return nil, fmt.Errorf("kinematics: arm length %.3f must exceed delta radius %.3f", cfg.ArmLength, cfg.Radius)
	}
	if cfg.StepsPerMM <= 0 {
		return nil, fmt.Errorf("kinematics: steps_per_mm %.3f must be positive", cfg.StepsPerMM)
	}
	if cfg.ExtruderStepsPerMM <= 0 {
		return nil, fmt.Errorf("kinematics: extruder_steps_per_mm %.3f must be positive", cfg.ExtruderStepsPerMM)
	}
	if cfg.BuildRadius < 0 {
		return nil, fmt.Errorf("kinematics: build radius %.3f must be non-negative", cfg.BuildRadius)
	}

	bedLevel := cfg.BedLevel
	if bedLevel == nil {
		bedLevel = IdentityMatrix()
	}

	r := cfg.Radius
	return &LinearDelta{
		r:        r,
		l:        cfg.ArmLength,
		h:        cfg.Height,
		buildRad: cfg.BuildRadius,
		stepsMM:  cfg.StepsPerMM,
		mmSteps:  1.0 / cfg.StepsPerMM,
		stepsMME: cfg.ExtruderStepsPerMM,
		mmStepsE: 1.0 / cfg.ExtruderStepsPerMM,
		towers: [3][2]float64{
			{0, r},
			{r * math.Sqrt(3) / 2, -r / 2},
			{-r * math.Sqrt(3) / 2, -r / 2},
		},
		bedLevel: bedLevel,
		logger:   log.OrNop(logger),
	}, nil
}

// NumAxes returns 4: the three towers plus the extruder.
func (d *LinearDelta) NumAxes() int {
	return NumAxes
}

// StepsPerMM returns the step density of the given axis.
func (d *LinearDelta) StepsPerMM(axis int) float64 {
	if axis == AxisE {
		return d.stepsMME
	}
	return d.stepsMM
}

// MMPerStep returns the distance of one step on the given axis.
func (d *LinearDelta) MMPerStep(axis int) float64 {
	if axis == AxisE {
		return d.mmStepsE
	}
	return d.mmSteps
}

// HomePosition returns the home pose: all carriages fully retracted to
// height h. The extruder axis is preserved from cur.
func (d *LinearDelta) HomePosition(cur AxisState) AxisState {
	home := int(d.h * d.stepsMM)
	return AxisState{home, home, home, cur[AxisE]}
}

// PositionFromMechanical solves the forward kinematic transform.
//
// The three branches share a consistency requirement: as carriage heights
// approach a degenerate boundary (A→B→C), the general branch must converge
// to the degenerate branch's result. The tests pin this down.
func (d *LinearDelta) PositionFromMechanical(mech AxisState) Position {
	e := float64(mech[AxisE]) * d.mmStepsE
	a := float64(mech[AxisA]) * d.mmSteps
	b := float64(mech[AxisB]) * d.mmSteps
	c := float64(mech[AxisC]) * d.mmSteps
	x, y, z := d.effectorFromHeights(a, b, c)
	return Position{X: x, Y: y, Z: z, E: e}
}

// effectorFromHeights computes the effector position from carriage heights
// in millimeters.
func (d *LinearDelta) effectorFromHeights(a, b, c float64) (x, y, z float64) {
	r, l := d.r, d.l
	switch {
	case a == b && b == c:
		// Effector on the central axis; the general form would divide
		// by zero here.
		d.logger.Debugf("delta forward: A==B==C")
		return 0, 0, a - math.Sqrt(l*l-r*r)

	case b == c:
		// Two towers level: the effector lies in the x=0 plane and the
		// system collapses to a 2D circle intersection. (A-B) is nonzero
		// by the case condition, but the expressions grow numerically
		// sensitive as A approaches B.
		d.logger.Debugf("delta forward: A!=B==C")
		ab := a - b
		ydiv := 2 * (4*a*a - 8*a*b + 4*b*b + 9*r*r)
		ya := 2 * ab * ab * r
		yb := 4 * math.Sqrt(ab*ab*(-ab*ab*ab*ab+4*ab*ab*l*l+3*(-2*ab*ab+3*l*l)*r*r-9*r*r*r*r))
		com1 := math.Abs(yb / (ab * ydiv))
		com2 := ya / ydiv
		z = 0.5 * (a + b - 3*r*(com2/ab+com1))
		y = com2 + ab*com1
		return 0, y, z

	default:
		// General sphere intersection. Solve the symmetric quadratic for
		// z first; of its two roots, the physical solution is the one
		// nearer the build plate, reached by subtracting the absolute
		// discriminant term over the shared denominator.
		d.logger.Debugf("delta forward: B!=C")
		za := (b - c) * r * (2*a*a*a - a*a*(b+c) - a*(b*b+c*c-3*r*r) + (b+c)*(2*b*b-3*b*c+2*c*c+3*r*r))
		s := a*a + b*b - b*c + c*c - a*(b+c)
		zb := math.Sqrt(3) * math.Sqrt(-((b-c)*(b-c)*r*r*((a-b)*(a-b)*(a-c)*(a-c)*(b-c)*(b-c)+
			3*s*(s-4*l*l)*r*r+9*(2*s-3*l*l)*r*r*r*r+27*r*r*r*r*r*r)))
		zdiv := (b - c) * r * (4*s + 9*r*r)
		z = za/zdiv - math.Abs(zb/zdiv)
		x = ((b - c) * (b + c - 2*z)) / (2 * math.Sqrt(3) * r)
		y = -((-2*a*a + b*b + c*c + 4*a*z - 2*b*z - 2*c*z) / (6 * r))
		return x, y, z
	}
}

// MechanicalFromPosition is the continuous inverse transform: carriage
// heights in millimeters for a cartesian position. Each height is the
// upper intersection of the tower line with the arm sphere. Positions
// outside the reachable workspace yield NaN heights.
//
// Step quantization is deliberately left to the motion planner; this
// function never rounds.
func (d *LinearDelta) MechanicalFromPosition(pos Position) (heights [3]float64, e float64) {
	for i, tower := range d.towers {
		dx := pos.X - tower[0]
		dy := pos.Y - tower[1]
		heights[i] = pos.Z + math.Sqrt(d.l*d.l-dx*dx-dy*dy)
	}
	return heights, pos.E
}

// radialSlack widens the build-circle comparison in Bound by a relative
// margin. A freshly rescaled point can land a few ulps outside the circle;
// without the slack a second Bound would rescale it again and move it,
// breaking Bound(Bound(p)) == Bound(p).
const radialSlack = 1e-12

// Bound clamps z into [MinZ, h+sqrt(L²−r²)] and rescales (x, y) radially
// onto the build-plate circle when outside it. The rescale preserves the
// direction from center rather than projecting along the original path in
// 3-space; that simplification is intentional. E passes through.
// Idempotent: applying Bound to its own result changes nothing.
func (d *LinearDelta) Bound(pos Position) Position {
	maxZ := d.h + math.Sqrt(d.l*d.l-d.r*d.r)
	z := math.Max(MinZ, math.Min(maxZ, pos.Z))

	x, y := pos.X, pos.Y
	rr := x*x + y*y
	limit := d.buildRad * d.buildRad
	if rr > limit*(1+radialSlack) {
		ratio := math.Sqrt(limit / rr)
		x *= ratio
		y *= ratio
	}
	return Position{X: x, Y: y, Z: z, E: pos.E}
}

// ApplyBedLevel runs the configured bed-leveling correction.
func (d *LinearDelta) ApplyBedLevel(pos Position) Position {
	return d.bedLevel.Transform(pos)
}
