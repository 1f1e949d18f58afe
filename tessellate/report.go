package tessellate

import (
	"bytes"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/google/uuid"
	"github.com/npillmayer/tessel/mesh"
)

// Status is the outcome of a single face.
type Status int8

// Face outcomes.
const (
	Ok Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Failed:
		return "failed"
	}
	return "skipped"
}

// Outcome tells what became of a face. Triangles is the number of
// triangles of a tessellated face; Err is the reason for a failure.
type Outcome struct {
	Status    Status
	Triangles int
	Err       error
}

func (o Outcome) String() string {
	switch o.Status {
	case Ok:
		return fmt.Sprintf("ok(%d)", o.Triangles)
	case Failed:
		return fmt.Sprintf("failed(%v)", o.Err)
	}
	return "skipped"
}

// Stats are the aggregated counters of a run.
type Stats struct {
	Faces             int
	Ok                int
	Failed            int
	Skipped           int
	Panics            int
	Triangles         int // before stitching
	Samples           int
	SteinerPoints     int
	Flips             int
	DegenerateNormals int
	SharedEdges       int // loop edges which took the refinement of a neighbour
	StitchTolerance   float64
	Stitch            mesh.StitchStats
}

// Report is the diagnostic result of a tessellation run. Err is set if the
// run as a whole failed or was cancelled.
type Report struct {
	RunID uuid.UUID
	Model string
	Stats Stats
	Err   error
	faces *treemap.Map // FaceID → Outcome
}

func faceComparator(a, b interface{}) int {
	return utils.IntComparator(int(a.(FaceID)), int(b.(FaceID)))
}

func newReport(model string) *Report {
	return &Report{
		RunID: uuid.New(),
		Model: model,
		faces: treemap.NewWith(faceComparator),
	}
}

func (r *Report) record(id FaceID, o Outcome, st faceStats) {
	r.faces.Put(id, o)
	r.Stats.Faces++
	switch o.Status {
	case Ok:
		r.Stats.Ok++
		r.Stats.Triangles += o.Triangles
	case Failed:
		r.Stats.Failed++
	default:
		r.Stats.Skipped++
	}
	r.Stats.Samples += st.Samples
	r.Stats.SteinerPoints += st.SteinerPoints
	r.Stats.Flips += st.Flips
	r.Stats.DegenerateNormals += st.DegenerateNormals
}

// Outcome returns the outcome of a face.
func (r *Report) Outcome(id FaceID) (Outcome, bool) {
	v, found := r.faces.Get(id)
	if !found {
		return Outcome{}, false
	}
	return v.(Outcome), true
}

// Each calls f for every face, in ascending order of face ids.
func (r *Report) Each(f func(FaceID, Outcome)) {
	it := r.faces.Iterator()
	for it.Next() {
		f(it.Key().(FaceID), it.Value().(Outcome))
	}
}

// Failures returns the errors of all failed faces, in ascending order of
// face ids.
func (r *Report) Failures() []*FaceError {
	var errs []*FaceError
	r.Each(func(id FaceID, o Outcome) {
		if o.Status == Failed {
			errs = append(errs, &FaceError{Face: id, Err: o.Err})
		}
	})
	return errs
}

func (r *Report) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "run %s of model %q: %d faces, %d ok, %d failed, %d skipped\n",
		r.RunID, r.Model, r.Stats.Faces, r.Stats.Ok, r.Stats.Failed, r.Stats.Skipped)
	r.Each(func(id FaceID, o Outcome) {
		fmt.Fprintf(&b, "  face %d: %s\n", id, o)
	})
	return b.String()
}
