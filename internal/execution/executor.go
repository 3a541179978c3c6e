package execution

import "context"

// Executor runs a suite to completion. Run reports whether every test
// passed; the error is reserved for runs that could not be carried out.
type Executor interface {
	Run(ctx context.Context) (bool, error)
}

// NewExecutor picks the executor for rc's options: a Pipeline when the run
// is split over processes, otherwise a TestRunner over the loaded suite.
func NewExecutor(rc *RunContext) (Executor, error) {
	if rc.opts.Processes > 0 {
		return NewPipeline(rc), nil
	}
	suite, err := rc.LoadSuite()
	if err != nil {
		return nil, err
	}
	return NewTestRunner(rc, suite), nil
}
