package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// UKF is a small unscented Kalman filter over a fixed-size state vector.
// It is a plain numerical building block: it knows nothing about teams or
// games beyond the process and measurement functions handed to it.
//
// The filter never wedges on bad numerics. If the covariance loses positive
// definiteness it is reset to the initial isotropic matrix and the predict or
// correct step reports the reset to the caller.
type UKF struct {
	dim     int
	lambda  float64
	wm      []float64 // sigma-point mean weights
	wc      []float64 // sigma-point covariance weights
	x       []float64
	p       *mat.SymDense
	q       []float64 // process noise diagonal
	initVar float64
}

// NewUKF creates a filter around the given initial state. processNoise is the
// diagonal of Q and must have one entry per state component. alpha, beta and
// kappa are the standard unscented-transform spread parameters.
func NewUKF(initial []float64, processNoise []float64, initialVariance, alpha, beta, kappa float64) (*UKF, error) {
	n := len(initial)
	if n == 0 {
		return nil, fmt.Errorf("empty initial state")
	}
	if len(processNoise) != n {
		return nil, fmt.Errorf("process noise has %d entries, state has %d", len(processNoise), n)
	}
	if initialVariance <= 0 {
		return nil, fmt.Errorf("initial variance must be positive, got %v", initialVariance)
	}

	lambda := alpha*alpha*(float64(n)+kappa) - float64(n)
	if float64(n)+lambda <= 0 {
		return nil, fmt.Errorf("unscented spread parameters leave n+lambda non-positive")
	}

	u := &UKF{
		dim:     n,
		lambda:  lambda,
		wm:      make([]float64, 2*n+1),
		wc:      make([]float64, 2*n+1),
		x:       append([]float64(nil), initial...),
		q:       append([]float64(nil), processNoise...),
		initVar: initialVariance,
	}

	u.wm[0] = lambda / (float64(n) + lambda)
	u.wc[0] = u.wm[0] + 1 - alpha*alpha + beta
	for i := 1; i <= 2*n; i++ {
		w := 1 / (2 * (float64(n) + lambda))
		u.wm[i] = w
		u.wc[i] = w
	}

	u.p = isotropic(n, initialVariance)
	return u, nil
}

// State returns a copy of the current state mean.
func (u *UKF) State() []float64 {
	return append([]float64(nil), u.x...)
}

// Component returns one state component.
func (u *UKF) Component(i int) float64 {
	return u.x[i]
}

// SetComponent overwrites one state component directly, bypassing the
// filter. Used for quantities treated as point observations.
func (u *UKF) SetComponent(i int, v float64) {
	u.x[i] = v
}

// Variance returns the covariance diagonal entry for component i.
func (u *UKF) Variance(i int) float64 {
	return u.p.At(i, i)
}

// Covariance returns a copy of the covariance matrix.
func (u *UKF) Covariance() *mat.SymDense {
	out := mat.NewSymDense(u.dim, nil)
	out.CopySym(u.p)
	return out
}

// Reset restores the covariance to the initial isotropic matrix.
func (u *UKF) Reset() {
	u.p = isotropic(u.dim, u.initVar)
}

// Predict propagates the belief through the process function and adds process
// noise. process mutates one sigma point in place. The returned flag reports
// whether the covariance had to be reset to recover sigma-point generation.
func (u *UKF) Predict(process func(x []float64)) bool {
	pts, reset := u.sigmaPointsWithRecovery()
	for _, pt := range pts {
		process(pt)
	}

	xNew := u.weightedMean(pts)
	pNew := mat.NewSymDense(u.dim, nil)
	d := mat.NewVecDense(u.dim, nil)
	for i, pt := range pts {
		for j := 0; j < u.dim; j++ {
			d.SetVec(j, pt[j]-xNew[j])
		}
		pNew.SymRankOne(pNew, u.wc[i], d)
	}
	for j := 0; j < u.dim; j++ {
		pNew.SetSym(j, j, pNew.At(j, j)+u.q[j])
	}

	u.x = xNew
	u.p = pNew
	return reset
}

// Correct applies the unscented measurement update. z and rDiag describe the
// full measurement vector and noise diagonal; active lists the indices of z
// that should participate (the caller excludes non-finite observations).
// measure maps a state vector to the full predicted measurement.
//
// The returned flag reports a covariance reset, either while generating sigma
// points or because the updated covariance lost positive definiteness.
func (u *UKF) Correct(z, rDiag []float64, active []int, measure func(x []float64) []float64) (bool, error) {
	if len(active) == 0 {
		return false, nil
	}
	if len(rDiag) != len(z) {
		return false, fmt.Errorf("measurement noise has %d entries, measurement has %d", len(rDiag), len(z))
	}

	pts, reset := u.sigmaPointsWithRecovery()
	m := len(active)

	// Propagate sigma points through the measurement model, keeping only
	// the active components.
	zs := make([][]float64, len(pts))
	for i, pt := range pts {
		full := measure(pt)
		sel := make([]float64, m)
		for j, idx := range active {
			sel[j] = full[idx]
		}
		zs[i] = sel
	}

	zBar := make([]float64, m)
	for i, zi := range zs {
		for j := 0; j < m; j++ {
			zBar[j] += u.wm[i] * zi[j]
		}
	}

	// Innovation covariance S and state-measurement cross covariance Pxz.
	s := mat.NewSymDense(m, nil)
	pxz := mat.NewDense(u.dim, m, nil)
	dz := mat.NewVecDense(m, nil)
	dx := mat.NewVecDense(u.dim, nil)
	var outer mat.Dense
	for i := range pts {
		for j := 0; j < m; j++ {
			dz.SetVec(j, zs[i][j]-zBar[j])
		}
		for j := 0; j < u.dim; j++ {
			dx.SetVec(j, pts[i][j]-u.x[j])
		}
		s.SymRankOne(s, u.wc[i], dz)
		outer.Outer(u.wc[i], dx, dz)
		pxz.Add(pxz, &outer)
	}
	for j, idx := range active {
		s.SetSym(j, j, s.At(j, j)+rDiag[idx])
	}

	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		// Singular innovation covariance; abandon the update.
		u.Reset()
		return true, fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	var gain mat.Dense
	gain.Mul(pxz, &sInv)

	y := mat.NewVecDense(m, nil)
	for j, idx := range active {
		y.SetVec(j, z[idx]-zBar[j])
	}
	var shift mat.VecDense
	shift.MulVec(&gain, y)
	for j := 0; j < u.dim; j++ {
		u.x[j] += shift.AtVec(j)
	}

	// P <- P - K S K^T, symmetrized against floating-point drift.
	var ks, ksk mat.Dense
	ks.Mul(&gain, s)
	ksk.Mul(&ks, gain.T())
	pNew := mat.NewSymDense(u.dim, nil)
	for i := 0; i < u.dim; i++ {
		for j := i; j < u.dim; j++ {
			v := u.p.At(i, j) - 0.5*(ksk.At(i, j)+ksk.At(j, i))
			pNew.SetSym(i, j, v)
		}
	}

	var ch mat.Cholesky
	if !ch.Factorize(pNew) {
		u.Reset()
		return true, nil
	}
	u.p = pNew
	return reset, nil
}

// sigmaPointsWithRecovery generates the 2n+1 sigma points, resetting the
// covariance once if it has degenerated. The post-reset factorization cannot
// fail because the isotropic matrix is positive definite.
func (u *UKF) sigmaPointsWithRecovery() ([][]float64, bool) {
	pts, err := u.sigmaPoints()
	if err == nil {
		return pts, false
	}
	u.Reset()
	pts, _ = u.sigmaPoints()
	return pts, true
}

func (u *UKF) sigmaPoints() ([][]float64, error) {
	var ch mat.Cholesky
	if !ch.Factorize(u.p) {
		return nil, fmt.Errorf("covariance matrix not positive definite")
	}
	l := mat.NewTriDense(u.dim, mat.Lower, nil)
	ch.LTo(l)

	scale := math.Sqrt(float64(u.dim) + u.lambda)
	pts := make([][]float64, 2*u.dim+1)
	pts[0] = append([]float64(nil), u.x...)
	for i := 0; i < u.dim; i++ {
		plus := make([]float64, u.dim)
		minus := make([]float64, u.dim)
		for j := 0; j < u.dim; j++ {
			off := scale * l.At(j, i)
			plus[j] = u.x[j] + off
			minus[j] = u.x[j] - off
		}
		pts[1+i] = plus
		pts[1+u.dim+i] = minus
	}
	return pts, nil
}

func (u *UKF) weightedMean(pts [][]float64) []float64 {
	out := make([]float64, u.dim)
	for i, pt := range pts {
		for j := 0; j < u.dim; j++ {
			out[j] += u.wm[i] * pt[j]
		}
	}
	return out
}

func isotropic(n int, v float64) *mat.SymDense {
	p := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		p.SetSym(i, i, v)
	}
	return p
}
