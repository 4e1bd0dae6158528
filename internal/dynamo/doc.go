// Package dynamo provides the core primitives shared by the climate model,
// the solver and the yearly driver.
//
//   - [State]: ordered state vector
//   - [System]: an ODE right-hand side (dX/dt = f(X, t))
//   - [Solver]: an initial-value-problem solver over a time span
//   - [ConfigError], [DivergenceError], [SolverError]: the error taxonomy
//
// # Example
//
//	model, _ := climate.New(params)
//	solver := integrators.NewRK45()
//	sol, err := solver.Solve(ctx, model, dynamo.Span{Start: 0, End: 365}, x0, dynamo.Linspace(0, 365, 366))
//
// Solvers and systems are not required to be safe for concurrent use.
package dynamo
