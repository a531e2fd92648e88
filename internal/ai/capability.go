package ai

// Capability records, once at startup, whether a generator stage can be used
// and why not when it cannot. Call sites branch on Generator() instead of
// re-checking credentials per request.
type Capability struct {
	generator Generator
	reason    string
}

// Available wraps a working generator.
func Available(g Generator) Capability {
	return Capability{generator: g}
}

// Unavailable records why this stage cannot run (missing API key, failed
// client construction).
func Unavailable(reason string) Capability {
	return Capability{reason: reason}
}

// Generator returns the wrapped generator and whether the stage is usable.
func (c Capability) Generator() (Generator, bool) {
	return c.generator, c.generator != nil
}

// Reason explains an unavailable stage. Empty for available ones.
func (c Capability) Reason() string {
	return c.reason
}
