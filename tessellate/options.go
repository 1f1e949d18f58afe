package tessellate

import (
	"fmt"
	"io"
	"math"
	"runtime"

	"github.com/npillmayer/tessel"
	"gopkg.in/yaml.v3"
)

// Defaults for zero option values.
const (
	DefaultMaxNormalAngle = 20 * math.Pi / 180
	DefaultMaxDepth       = 8
)

// Options control a tessellation run. Zero values are replaced by defaults
// in Validate, except for Tolerance, which is required.
type Options struct {
	// Tolerance is the maximum deviation of the mesh from the surface, in
	// model units.
	Tolerance float64 `yaml:"tolerance"`
	// MaxNormalAngle is the maximum angle in radians between the surface
	// normals at the corners of a sampling cell.
	MaxNormalAngle float64 `yaml:"max_normal_angle"`
	// MinDivisions is the number of sampling cells per direction to start
	// with.
	MinDivisions int `yaml:"min_divisions"`
	// MaxDepth limits the subdivision of sampling cells and of trim loop
	// edges.
	MaxDepth int `yaml:"max_depth"`
	// Workers is the number of faces tessellated in parallel.
	Workers int `yaml:"workers"`
	// TriangleBudget stops the scheduling of further faces once the
	// number of triangles produced exceeds it. 0 means no limit.
	TriangleBudget int64 `yaml:"triangle_budget"`
	// StitchTolerance is the distance within which boundary vertices of
	// neighbouring faces are merged. It defaults to Tolerance.
	StitchTolerance float64 `yaml:"stitch_tolerance"`
	// StitchRelative, if positive, overrides StitchTolerance with this
	// fraction of the diagonal of the model's bounding box.
	StitchRelative float64 `yaml:"stitch_relative"`
	// CurveTolerance is the chord height for sampling trim curves, in
	// parameter units. It defaults to 1/1000 of the diagonal of the
	// surface domain.
	CurveTolerance float64 `yaml:"curve_tolerance"`
}

// Option changes a single option.
type Option func(*Options)

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithTriangleBudget sets the triangle budget.
func WithTriangleBudget(n int64) Option {
	return func(o *Options) { o.TriangleBudget = n }
}

// WithStitchTolerance sets an absolute stitching tolerance.
func WithStitchTolerance(tol float64) Option {
	return func(o *Options) { o.StitchTolerance, o.StitchRelative = tol, 0 }
}

// WithStitchRelative sets a stitching tolerance relative to the size of the
// model.
func WithStitchRelative(f float64) Option {
	return func(o *Options) { o.StitchRelative = f }
}

// WithMaxNormalAngle sets the maximum normal angle in radians.
func WithMaxNormalAngle(a float64) Option {
	return func(o *Options) { o.MaxNormalAngle = a }
}

// WithDivisions sets the initial number of sampling cells and the maximum
// subdivision depth.
func WithDivisions(n, depth int) Option {
	return func(o *Options) { o.MinDivisions, o.MaxDepth = n, depth }
}

// DefaultOptions returns the default options for a linear tolerance.
func DefaultOptions(tolerance float64, opts ...Option) Options {
	o := Options{
		Tolerance:       tolerance,
		MaxNormalAngle:  DefaultMaxNormalAngle,
		MinDivisions:    1,
		MaxDepth:        DefaultMaxDepth,
		Workers:         runtime.GOMAXPROCS(0),
		StitchTolerance: tolerance,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validate checks the options and replaces zero values by defaults.
func (o *Options) Validate() error {
	if !(o.Tolerance > 0) || !tessel.IsFinite(o.Tolerance) {
		return fmt.Errorf("%w: tolerance %g", ErrOptions, o.Tolerance)
	}
	if o.MaxNormalAngle < 0 || o.MinDivisions < 0 || o.MaxDepth < 0 || o.Workers < 0 ||
		o.TriangleBudget < 0 || o.StitchTolerance < 0 || o.StitchRelative < 0 || o.CurveTolerance < 0 {
		return fmt.Errorf("%w: negative value in %+v", ErrOptions, *o)
	}
	if o.MaxNormalAngle == 0 {
		o.MaxNormalAngle = DefaultMaxNormalAngle
	}
	if o.MinDivisions == 0 {
		o.MinDivisions = 1
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.StitchTolerance == 0 {
		o.StitchTolerance = o.Tolerance
	}
	return nil
}

// LoadOptions reads options from YAML. Unknown keys are an error. The
// options are validated.
func LoadOptions(r io.Reader) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrOptions, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	tracer().Debugf("loaded options %+v", o)
	return o, nil
}
