package domain

// TestCase is an ordered group of tests sharing per-test setup/teardown and
// once-per-case startup/shutdown hooks. It owns its tests.
type TestCase struct {
	Name     string
	Tests    []*Test
	Setup    HookFunc
	Teardown HookFunc
	Startup  HookFunc
	Shutdown HookFunc
}

// NewTestCase creates an empty test case.
func NewTestCase(name string) *TestCase {
	return &TestCase{Name: name}
}

// AddTest appends a test, keeping declaration order.
func (c *TestCase) AddTest(t *Test) {
	c.Tests = append(c.Tests, t)
}

// Test returns the test with the given name or nil.
func (c *TestCase) Test(name string) *Test {
	for _, t := range c.Tests {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TestSuite is the root of a run: an ordered list of test cases plus the
// warmup and cooldown hooks run once around the whole run.
type TestSuite struct {
	Name     string
	Cases    []*TestCase
	Warmup   HookFunc
	Cooldown HookFunc
}

// NewTestSuite creates a suite from the given cases.
func NewTestSuite(name string, cases ...*TestCase) *TestSuite {
	return &TestSuite{Name: name, Cases: cases}
}

// AddCase appends a test case.
func (s *TestSuite) AddCase(c *TestCase) {
	s.Cases = append(s.Cases, c)
}

// Case returns the test case with the given name or nil.
func (s *TestSuite) Case(name string) *TestCase {
	for _, c := range s.Cases {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestCount is the number of tests over all cases. Iterated tests count
// once regardless of their data.
func (s *TestSuite) TestCount() int {
	n := 0
	for _, c := range s.Cases {
		n += len(c.Tests)
	}
	return n
}
