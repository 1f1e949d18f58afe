package tessellate

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/npillmayer/tessel"
	"github.com/npillmayer/tessel/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// faceResult is what a worker hands back for a face.
type faceResult struct {
	prep     *preparedFace
	fragment mesh.Fragment
	stats    faceStats
	err      error
	skipped  bool
	panicked bool
}

// Tessellate tessellates a model with default options. A tolerance of 0
// selects the tolerance of the model. Problems are recorded in the report;
// the mesh holds every face which could be tessellated.
func Tessellate(model *Model, tolerance float64) (*mesh.Mesh3D, *Report) {
	if tolerance <= 0 {
		tolerance = model.Tolerance
	}
	m, report, err := Run(context.Background(), model, DefaultOptions(tolerance))
	if err != nil {
		tracer().Errorf("tessellation of model %q: %v", model.Name, err)
	}
	return m, report
}

// Run tessellates all faces of a model in parallel and stitches the
// fragments into one mesh. It works in three phases: the trim loops of
// all faces are prepared in parallel, edges shared between faces are
// given a common refinement, and the faces are triangulated in parallel.
// Cancellation of ctx and an exhausted triangle budget are checked between
// faces; faces not started are reported as skipped and the mesh of the
// other faces is returned together with ctx's error.
func Run(ctx context.Context, model *Model, opts Options) (*mesh.Mesh3D, *Report, error) {
	report := newReport(model.Name)
	fail := func(err error) (*mesh.Mesh3D, *Report, error) {
		report.Err = err
		return &mesh.Mesh3D{}, report, err
	}
	if err := opts.Validate(); err != nil {
		return fail(err)
	}
	if err := model.Validate(); err != nil {
		return fail(err)
	}
	trace := tracer().P("run", report.RunID.String())
	faces := model.Faces()
	trace.Infof("tessellating %d faces of model %q with tolerance %g", len(faces), model.Name, opts.Tolerance)
	results := make([]faceResult, len(faces))
	var produced atomic.Int64
	stop := func() bool {
		return ctx.Err() != nil || (opts.TriangleBudget > 0 && produced.Load() >= opts.TriangleBudget)
	}
	err := parallel(ctx, results, opts.Workers, stop, func(i int) faceResult {
		return safely(func() faceResult {
			pf, err := prepareFace(faces[i], opts)
			return faceResult{prep: pf, err: err}
		})
	})
	report.Stats.SharedEdges = shareEdges(results, edgeTolerance(results, opts))
	if e := parallel(ctx, results, opts.Workers, stop, func(i int) faceResult {
		res := safely(func() faceResult {
			frag, st, err := tessellateFace(results[i].prep, opts)
			return faceResult{fragment: frag, stats: st, err: err}
		})
		produced.Add(int64(len(res.fragment.Triangles)))
		return res
	}); err == nil {
		err = e
	}
	var fragments []mesh.Fragment
	for i, f := range faces {
		res := &results[i]
		switch {
		case res.skipped:
			report.record(f.ID, Outcome{Status: Skipped}, res.stats)
		case res.err != nil:
			trace.P("face", f.ID).Errorf("%v", res.err)
			report.record(f.ID, Outcome{Status: Failed, Err: res.err}, res.stats)
			if res.panicked {
				report.Stats.Panics++
			}
		default:
			tracer().Debugf("face %d: %d triangles, %d samples", f.ID, len(res.fragment.Triangles), res.stats.Samples)
			report.record(f.ID, Outcome{Status: Ok, Triangles: len(res.fragment.Triangles)}, res.stats)
			fragments = append(fragments, res.fragment)
		}
	}
	var positions []r3.Vec
	for _, f := range fragments {
		for _, v := range f.Vertices {
			positions = append(positions, v.Position)
		}
	}
	tol := stitchTolerance(positions, opts)
	m, sst := mesh.Stitch(fragments, tol)
	report.Stats.StitchTolerance, report.Stats.Stitch = tol, sst
	report.Err = err
	trace.Infof("model %q: %d ok, %d failed, %d skipped, %d triangles",
		model.Name, report.Stats.Ok, report.Stats.Failed, report.Stats.Skipped, m.NumTriangles())
	return m, report, report.Err
}

// parallel calls fn for every face which has neither failed nor been
// skipped, on at most workers goroutines, and stores its result. Once stop
// reports true, the remaining faces are skipped. The error returned is
// ctx's error if a face was skipped because of cancellation.
func parallel(ctx context.Context, results []faceResult, workers int, stop func() bool, fn func(int) faceResult) error {
	skip := func(i int) error {
		results[i].skipped = true
		return ctx.Err()
	}
	var err error
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range results {
		if results[i].skipped || results[i].err != nil {
			continue
		}
		if stop() {
			if e := skip(i); err == nil {
				err = e
			}
			continue
		}
		g.Go(func() error {
			if stop() {
				return skip(i)
			}
			results[i] = fn(i)
			return nil
		})
	}
	if e := g.Wait(); e != nil {
		return e
	}
	return err
}

// safely calls fn, turning a panic into a failed result.
func safely(fn func() faceResult) (res faceResult) {
	defer func() {
		if r := recover(); r != nil {
			res = faceResult{
				err:      fmt.Errorf("%w: %v", ErrPanic, r),
				panicked: true,
			}
		}
	}()
	return fn()
}

// edgeTolerance is the distance within which end points of trim loop edges
// of different faces are considered equal.
func edgeTolerance(results []faceResult, opts Options) float64 {
	var positions []r3.Vec
	for _, res := range results {
		if res.prep == nil {
			continue
		}
		for _, ends := range res.prep.ends {
			positions = append(positions, ends...)
		}
	}
	return stitchTolerance(positions, opts)
}

// stitchTolerance is either absolute or relative to the diagonal of the
// bounding box of a set of model space positions.
func stitchTolerance(positions []r3.Vec, opts Options) float64 {
	if opts.StitchRelative <= 0 {
		return opts.StitchTolerance
	}
	inf := math.Inf(1)
	lo, hi := r3.Vec{X: inf, Y: inf, Z: inf}, r3.Vec{X: -inf, Y: -inf, Z: -inf}
	for _, p := range positions {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	d := r3.Norm(r3.Sub(hi, lo))
	if !tessel.IsFinite(d) {
		return opts.StitchTolerance
	}
	return opts.StitchRelative * d
}
