// Package analysis provides trajectory analysis tools.
//
//   - [PowerSpectrum]: frequency content of a recorded coordinate
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda := analysis.LyapunovExponent(mech, integ, x0, dt, duration, 1e-8)
//	if lambda > 0 {
//	    // trajectories diverge exponentially
//	}
package analysis
