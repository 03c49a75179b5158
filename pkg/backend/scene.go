package backend

import (
	"math"
	"math/rand"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cast"
)

// Integrators understood by the progressive backend
const (
	IntegratorPathTracer     = "pathTracer"
	IntegratorPbsPathTracer  = "pbsPathTracer"
	IntegratorDirectLighting = "directLighting"
	IntegratorVisualizer     = "visualizer"
)

// IsKnownIntegrator reports whether name is an integrator the backend can run
func IsKnownIntegrator(name string) bool {
	switch name {
	case IntegratorPathTracer, IntegratorPbsPathTracer, IntegratorDirectLighting, IntegratorVisualizer:
		return true
	}
	return false
}

// Integrator parameters
const (
	ParamMaxPathLength = "maxPathLength"
	DefaultPathLength  = 5
)

// intParam returns a positive integer parameter, matching the name case
// insensitively, or def
func (d IntegratorDesc) intParam(name string, def int) int {
	for key, value := range d.Params {
		if !strings.EqualFold(key, name) {
			continue
		}
		if v, err := cast.ToIntE(value); err == nil && v > 0 {
			return v
		}
	}
	return def
}

// Sample is the result of tracing one camera ray
type Sample struct {
	Color    mgl64.Vec3
	Alpha    float64    // 1 when the ray hit geometry
	Hit      bool       // whether the primary ray hit geometry
	Position mgl64.Vec3 // world space primary hit
}

// TraceContext carries per-tile state into Trace
type TraceContext struct {
	Random *rand.Rand
	// Clipped reports whether a primary hit is removed by a clip plane
	Clipped func(p mgl64.Vec3) bool
}

// Scene is the geometry and lighting rendered by the progressive backend.
// Trace is called concurrently from the worker goroutines.
type Scene interface {
	Trace(ray Ray, integrator IntegratorDesc, tc *TraceContext) Sample
}

// Sphere is an analytic sphere with a diffuse material
type Sphere struct {
	Center   mgl64.Vec3
	Radius   float64
	Albedo   mgl64.Vec3
	Emission mgl64.Vec3
}

// SphereScene is a set of diffuse spheres over an optional ground plane at
// y = 0, lit by a directional sun and a sky gradient
type SphereScene struct {
	Spheres      []Sphere
	Ground       bool
	GroundAlbedo mgl64.Vec3
	SunDirection mgl64.Vec3 // towards the sun
	SunColor     mgl64.Vec3
	SkyTop       mgl64.Vec3
	SkyBottom    mgl64.Vec3
}

// NewDefaultScene creates the three sphere demo scene
func NewDefaultScene() *SphereScene {
	return &SphereScene{
		Spheres: []Sphere{
			{Center: mgl64.Vec3{0, 1, -3}, Radius: 1, Albedo: mgl64.Vec3{0.7, 0.3, 0.3}},
			{Center: mgl64.Vec3{-2.2, 0.8, -3.5}, Radius: 0.8, Albedo: mgl64.Vec3{0.3, 0.7, 0.3}},
			{Center: mgl64.Vec3{2.2, 0.8, -3.5}, Radius: 0.8, Albedo: mgl64.Vec3{0.3, 0.3, 0.8}},
			{Center: mgl64.Vec3{0, 3.5, -4}, Radius: 0.4, Albedo: mgl64.Vec3{0, 0, 0}, Emission: mgl64.Vec3{8, 7, 5}},
		},
		Ground:       true,
		GroundAlbedo: mgl64.Vec3{0.5, 0.5, 0.5},
		SunDirection: mgl64.Vec3{0.4, 1, 0.3}.Normalize(),
		SunColor:     mgl64.Vec3{1.5, 1.4, 1.2},
		SkyTop:       mgl64.Vec3{0.5, 0.7, 1.0},
		SkyBottom:    mgl64.Vec3{1.0, 1.0, 1.0},
	}
}

type hitRecord struct {
	t        float64
	point    mgl64.Vec3
	normal   mgl64.Vec3
	albedo   mgl64.Vec3
	emission mgl64.Vec3
}

const rayEpsilon = 1e-4

// hit finds the closest intersection beyond tMin. Candidates rejected by
// clip are skipped.
func (s *SphereScene) hit(ray Ray, tMin float64, clip func(mgl64.Vec3) bool) (hitRecord, bool) {
	closest := math.Inf(1)
	var rec hitRecord
	found := false

	accept := func(t float64) bool {
		if t <= tMin || t >= closest {
			return false
		}
		return clip == nil || !clip(ray.At(t))
	}

	for i := range s.Spheres {
		sphere := &s.Spheres[i]
		oc := ray.Origin.Sub(sphere.Center)
		halfB := oc.Dot(ray.Direction)
		c := oc.Dot(oc) - sphere.Radius*sphere.Radius
		disc := halfB*halfB - c
		if disc < 0 {
			continue
		}
		sqrtd := math.Sqrt(disc)
		for _, t := range []float64{-halfB - sqrtd, -halfB + sqrtd} {
			if !accept(t) {
				continue
			}
			closest = t
			point := ray.At(t)
			rec = hitRecord{
				t:        t,
				point:    point,
				normal:   point.Sub(sphere.Center).Mul(1 / sphere.Radius),
				albedo:   sphere.Albedo,
				emission: sphere.Emission,
			}
			found = true
			break
		}
	}

	if s.Ground && ray.Direction[1] != 0 {
		t := -ray.Origin[1] / ray.Direction[1]
		if accept(t) {
			closest = t
			rec = hitRecord{
				t:      t,
				point:  ray.At(t),
				normal: mgl64.Vec3{0, 1, 0},
				albedo: s.GroundAlbedo,
			}
			found = true
		}
	}

	if found && rec.normal.Dot(ray.Direction) > 0 {
		rec.normal = rec.normal.Mul(-1)
	}
	return rec, found
}

func (s *SphereScene) sky(dir mgl64.Vec3) mgl64.Vec3 {
	a := 0.5 * (dir[1] + 1)
	return s.SkyBottom.Mul(1 - a).Add(s.SkyTop.Mul(a))
}

// sunLight returns the direct sun contribution at a surface point
func (s *SphereScene) sunLight(rec hitRecord) mgl64.Vec3 {
	cosTheta := rec.normal.Dot(s.SunDirection)
	if cosTheta <= 0 {
		return mgl64.Vec3{}
	}
	shadow := Ray{Origin: rec.point.Add(rec.normal.Mul(rayEpsilon)), Direction: s.SunDirection}
	if _, blocked := s.hit(shadow, rayEpsilon, nil); blocked {
		return mgl64.Vec3{}
	}
	return s.SunColor.Mul(cosTheta)
}

// Trace implements Scene
func (s *SphereScene) Trace(ray Ray, integrator IntegratorDesc, tc *TraceContext) Sample {
	rec, ok := s.hit(ray, 0, tc.Clipped)
	if !ok {
		if integrator.Name == IntegratorVisualizer {
			return Sample{}
		}
		return Sample{Color: s.sky(ray.Direction)}
	}

	sample := Sample{Alpha: 1, Hit: true, Position: rec.point}
	switch integrator.Name {
	case IntegratorVisualizer:
		sample.Color = rec.normal.Mul(0.5).Add(mgl64.Vec3{0.5, 0.5, 0.5})
	case IntegratorDirectLighting:
		ambient := s.sky(rec.normal).Mul(0.2)
		sample.Color = rec.emission.Add(mulVec(rec.albedo, s.sunLight(rec).Add(ambient)))
	default:
		maxDepth := integrator.intParam(ParamMaxPathLength, DefaultPathLength)
		roulette := integrator.Name == IntegratorPbsPathTracer
		sample.Color = s.pathTrace(ray, rec, maxDepth, roulette, tc.Random)
	}
	return sample
}

// pathTrace follows a diffuse path from the primary hit with next event
// estimation towards the sun
func (s *SphereScene) pathTrace(ray Ray, rec hitRecord, maxDepth int, roulette bool, random *rand.Rand) mgl64.Vec3 {
	radiance := mgl64.Vec3{}
	throughput := mgl64.Vec3{1, 1, 1}

	for depth := 0; ; depth++ {
		radiance = radiance.Add(mulVec(throughput, rec.emission))
		radiance = radiance.Add(mulVec(throughput, mulVec(rec.albedo, s.sunLight(rec))))

		if depth+1 >= maxDepth {
			break
		}
		throughput = mulVec(throughput, rec.albedo)
		if roulette && depth >= 2 {
			p := math.Min(0.95, math.Max(throughput[0], math.Max(throughput[1], throughput[2])))
			if random.Float64() >= p {
				break
			}
			throughput = throughput.Mul(1 / p)
		}

		ray = Ray{Origin: rec.point.Add(rec.normal.Mul(rayEpsilon)), Direction: cosineDirection(rec.normal, random)}
		next, ok := s.hit(ray, rayEpsilon, nil)
		if !ok {
			radiance = radiance.Add(mulVec(throughput, s.sky(ray.Direction)))
			break
		}
		rec = next
	}
	return radiance
}

// cosineDirection samples a cosine weighted direction around n
func cosineDirection(n mgl64.Vec3, random *rand.Rand) mgl64.Vec3 {
	r1, r2 := random.Float64(), random.Float64()
	phi := 2 * math.Pi * r1
	r := math.Sqrt(r2)
	local := mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), math.Sqrt(1 - r2)}

	a := mgl64.Vec3{1, 0, 0}
	if math.Abs(n[0]) > 0.9 {
		a = mgl64.Vec3{0, 1, 0}
	}
	t := n.Cross(a).Normalize()
	b := n.Cross(t)
	return t.Mul(local[0]).Add(b.Mul(local[1])).Add(n.Mul(local[2])).Normalize()
}

func mulVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
