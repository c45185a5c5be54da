package multibody

import (
	"fmt"

	"github.com/mzeidler/mbd/internal/spatial"
)

// Station is a fixed attachment point on a node, expressed as an offset in
// the node's body frame. Immutable once built.
type Station struct {
	node   *Node
	offset spatial.Vec3
}

func NewStation(node *Node, offset spatial.Vec3) Station {
	if node == nil {
		panic("multibody: station requires a node")
	}
	return Station{node: node, offset: offset}
}

func (s Station) Node() *Node          { return s.node }
func (s Station) Offset() spatial.Vec3 { return s.offset }

func (s Station) String() string {
	return fmt.Sprintf("station %v on node %d", s.offset, s.node.nodeNum)
}

// StationRuntime holds per-pass world-frame kinematics for one station.
// Every field is overwritten by the corresponding calc pass before use.
type StationRuntime struct {
	StationG    spatial.Vec3 // station offset rotated into the ground frame
	PosG        spatial.Vec3
	StationVelG spatial.Vec3 // w x StationG
	VelG        spatial.Vec3
	AccG        spatial.Vec3
}

func (s Station) calcPosInfo(rt *StationRuntime) {
	rt.StationG = s.node.BodyRotation().MulVec(s.offset)
	rt.PosG = s.node.BodyOrigin().Add(rt.StationG)
}

func (s Station) calcVelInfo(rt *StationRuntime) {
	w := s.node.SpatialAngVel()
	rt.StationVelG = w.Cross(rt.StationG)
	rt.VelG = s.node.SpatialLinVel().Add(rt.StationVelG)
}

func (s Station) calcAccInfo(rt *StationRuntime) {
	w := s.node.SpatialAngVel()
	aa := s.node.SpatialAngAcc()
	rt.AccG = s.node.SpatialLinAcc().
		Add(aa.Cross(rt.StationG)).
		Add(w.Cross(rt.StationVelG)) // i.e. w x (w x r)
}

// DistanceConstraint pins the distance between two stations. It becomes
// valid when the tree assigns its runtime-cache slot at insertion.
type DistanceConstraint struct {
	stations     [2]Station
	distance     float64
	runtimeIndex int
}

func newDistanceConstraint(s1, s2 Station, distance float64) *DistanceConstraint {
	return &DistanceConstraint{
		stations:     [2]Station{s1, s2},
		distance:     distance,
		runtimeIndex: -1,
	}
}

func (dc *DistanceConstraint) Distance() float64   { return dc.distance }
func (dc *DistanceConstraint) Station(i int) Station { return dc.stations[i] }
func (dc *DistanceConstraint) RuntimeIndex() int   { return dc.runtimeIndex }

func (dc *DistanceConstraint) assertValid() {
	if dc.runtimeIndex < 0 {
		panic("multibody: distance constraint used before its runtime slot was assigned")
	}
}

// DistanceConstraintRuntime caches the derived constraint kinematics. All
// fields are recomputed from scratch by each calc pass.
type DistanceConstraintRuntime struct {
	Stations        [2]StationRuntime
	FromTip1ToTip2G spatial.Vec3
	UnitDirectionG  spatial.Vec3
	RelVelG         spatial.Vec3
	PosErr          float64
	VelErr          float64
	AccErr          float64
}

// calcPosInfo computes both station positions and the position error.
// Coincident stations produce a non-finite unit direction; this is left
// unguarded and propagates into the errors.
func (dc *DistanceConstraint) calcPosInfo(rt *DistanceConstraintRuntime) {
	dc.assertValid()
	for i := 0; i <= 1; i++ {
		dc.stations[i].calcPosInfo(&rt.Stations[i])
	}
	rt.FromTip1ToTip2G = rt.Stations[1].PosG.Sub(rt.Stations[0].PosG)
	separation := rt.FromTip1ToTip2G.Length()
	rt.UnitDirectionG = rt.FromTip1ToTip2G.Scale(1 / separation)
	rt.PosErr = dc.distance - separation
}

func (dc *DistanceConstraint) calcVelInfo(rt *DistanceConstraintRuntime) {
	dc.assertValid()
	for i := 0; i <= 1; i++ {
		dc.stations[i].calcVelInfo(&rt.Stations[i])
	}
	rt.RelVelG = rt.Stations[1].VelG.Sub(rt.Stations[0].VelG)
	rt.VelErr = rt.UnitDirectionG.Dot(rt.RelVelG)
}

func (dc *DistanceConstraint) calcAccInfo(rt *DistanceConstraintRuntime) {
	dc.assertValid()
	for i := 0; i <= 1; i++ {
		dc.stations[i].calcAccInfo(&rt.Stations[i])
	}
	relAcc := rt.Stations[1].AccG.Sub(rt.Stations[0].AccG)
	// Kept as found in the reference implementation, which itself flags this
	// expression as questionable: the separation vector is used unnormalized
	// and the sign disagrees with PosErr/VelErr. Tests pin this behavior.
	rt.AccErr = rt.RelVelG.LengthSq() + relAcc.Dot(rt.FromTip1ToTip2G)
}
