package usecase

// errorCollector keeps the first N error messages of a bulk run, counting the
// rest. Bulk summaries always return a bounded error list so a mostly-failed
// run still produces a readable response.
type errorCollector struct {
	cap     int
	dropped int
	errs    []string
}

// maxCollectedErrors caps the error list on every bulk summary.
const maxCollectedErrors = 10

// maxErrorExcerptLen truncates individual row error messages.
const maxErrorExcerptLen = 120

func newErrorCollector() *errorCollector {
	return &errorCollector{cap: maxCollectedErrors}
}

// Add records one error message, truncated to an excerpt. Messages past the
// cap are counted but not kept.
func (c *errorCollector) Add(msg string) {
	if len(msg) > maxErrorExcerptLen {
		msg = msg[:maxErrorExcerptLen]
	}
	if len(c.errs) >= c.cap {
		c.dropped++
		return
	}
	c.errs = append(c.errs, msg)
}

// Errors returns the collected messages, first-N order.
func (c *errorCollector) Errors() []string {
	return c.errs
}

// Dropped returns how many messages exceeded the cap.
func (c *errorCollector) Dropped() int {
	return c.dropped
}
