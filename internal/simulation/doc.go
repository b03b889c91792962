// Package simulation runs the external simulator over rendered datapoint
// directories.
//
// Each datapoint directory is simulated in place by invoking
//
//	[mpirun -n <procs>] pflotran [-screen_output off]
//
// with the directory as working directory. Directories that already hold
// both pflotran.out and pflotran.h5 are skipped unless Options.Force is set,
// so an interrupted run can be resumed.
//
// The process is started through a CommandRunner so tests can substitute a
// fake:
//
//	r := simulation.NewRunner(logger, simulation.Options{Mpirun: true, Procs: 4}, simulation.ExecRunner{})
//	results, err := r.Run(ctx, dirs)
package simulation
