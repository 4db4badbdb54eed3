package sandbox

// Command is a value-semantic description of one sandboxed run, built with
// fluent setters and consumed by Sandbox.Run.
type Command struct {
	program string
	args    []string

	timeLimit      *Limit
	memoryLimit    *Limit
	realTimeLimit  *float64
	extraTimeLimit *float64
	stackLimit     *Limit
	countFiles     *Limit
	countProcess   *Limit

	useEnv   bool
	openDirs []string

	stdin  string
	stdout string
	stderr string
}

// NewCommand starts a builder for running program with args.
func NewCommand(program string, args ...string) *Command {
	return &Command{program: program, args: args}
}

func (c *Command) Program() string   { return c.program }
func (c *Command) Args() []string    { return c.args }
func (c *Command) Stdin() string     { return c.stdin }
func (c *Command) Stdout() string    { return c.stdout }
func (c *Command) Stderr() string    { return c.stderr }
func (c *Command) UseEnv() bool      { return c.useEnv }
func (c *Command) OpenDirs() []string { return c.openDirs }

func (c *Command) TimeLimit() *Limit      { return c.timeLimit }
func (c *Command) MemoryLimit() *Limit    { return c.memoryLimit }
func (c *Command) RealTimeLimit() *float64 { return c.realTimeLimit }
func (c *Command) ExtraTimeLimit() *float64 { return c.extraTimeLimit }
func (c *Command) StackLimit() *Limit     { return c.stackLimit }
func (c *Command) CountFiles() *Limit     { return c.countFiles }
func (c *Command) CountProcess() *Limit   { return c.countProcess }

// WithTimeLimit sets the CPU time limit in seconds.
func (c *Command) WithTimeLimit(l Limit) *Command {
	c.timeLimit = &l
	return c
}

// WithMemoryLimit sets the memory limit in KiB.
func (c *Command) WithMemoryLimit(l Limit) *Command {
	c.memoryLimit = &l
	return c
}

// WithRealTimeLimit sets the wall-clock limit in seconds.
func (c *Command) WithRealTimeLimit(v float64) *Command {
	c.realTimeLimit = &v
	return c
}

// WithExtraTimeLimit sets the extra-time grace period in seconds.
func (c *Command) WithExtraTimeLimit(v float64) *Command {
	c.extraTimeLimit = &v
	return c
}

// WithStackLimit sets the stack size limit in KiB.
func (c *Command) WithStackLimit(l Limit) *Command {
	c.stackLimit = &l
	return c
}

// WithCountFilesLimit sets the open-file-descriptor limit.
func (c *Command) WithCountFilesLimit(l Limit) *Command {
	c.countFiles = &l
	return c
}

// WithCountProcessLimit sets the process/thread count limit.
func (c *Command) WithCountProcessLimit(l Limit) *Command {
	c.countProcess = &l
	return c
}

// WithEnv enables passing the full host environment into the sandbox.
func (c *Command) WithEnv(use bool) *Command {
	c.useEnv = use
	return c
}

// WithOpenDir adds an extra directory to bind-mount into the jail.
func (c *Command) WithOpenDir(dir string) *Command {
	c.openDirs = append(c.openDirs, dir)
	return c
}

// WithStdin redirects stdin from a path relative to the jailed root.
func (c *Command) WithStdin(path string) *Command {
	c.stdin = path
	return c
}

// WithStdout redirects stdout to a path relative to the jailed root.
func (c *Command) WithStdout(path string) *Command {
	c.stdout = path
	return c
}

// WithStderr redirects stderr to a path relative to the jailed root.
func (c *Command) WithStderr(path string) *Command {
	c.stderr = path
	return c
}
