// Package kinematics translates between mechanical actuator positions
// (integer step counts) and physical cartesian coordinates for a specific
// robot geometry.
//
// Cartesian positions are derived values: they are always recomputed from
// the mechanical state, never stored authoritatively.
package kinematics

// Axis indices into an AxisState. The delta geometry drives three tower
// carriages plus the extruder.
const (
	AxisA = iota
	AxisB
	AxisC
	AxisE
)

// NumAxes is the axis count of the delta geometry.
const NumAxes = 4

// AxisState is the mechanical position of every controlled axis, in steps.
// It is owned by the motion subsystem; coordinate mappers only read it.
type AxisState [NumAxes]int

// Position is a physical position in millimeters.
type Position struct {
	X float64
	Y float64
	Z float64
	E float64
}

// CoordMap maps between mechanical and physical coordinates for one robot
// geometry. All operations are total functions: no errors are signaled at
// transform time. Geometry parameters are validated at construction.
type CoordMap interface {
	// NumAxes returns the number of controlled axes.
	NumAxes() int

	// HomePosition returns the mechanical position of the home pose.
	// Axes not involved in homing keep their value from cur.
	HomePosition(cur AxisState) AxisState

	// PositionFromMechanical computes the forward kinematic transform.
	PositionFromMechanical(mech AxisState) Position

	// Bound clamps a position into the reachable workspace.
	Bound(pos Position) Position

	// ApplyBedLevel applies the bed-leveling correction.
	ApplyBedLevel(pos Position) Position
}
