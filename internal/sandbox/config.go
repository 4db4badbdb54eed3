package sandbox

import "fmt"

// PoolConfig mirrors the jail binary's own config file, plus the knobs the
// pool needs to drive it (sandbox count, uid/gid bases, root paths).
type PoolConfig struct {
	SandboxesCount int `yaml:"sandboxes_count"`

	ProcessDefaultLimit   int     `yaml:"process_default_limit"`
	OpenFilesDefaultLimit int     `yaml:"open_files_default_limit"`
	MemoryDefaultLimit    int64   `yaml:"memory_default_limit"`
	StackDefaultLimit     int64   `yaml:"stack_default_limit"`
	ExtraTimeDefaultLimit float64 `yaml:"extra_time_default_limit"`
	RealTimeDefaultLimit  float64 `yaml:"real_time_default_limit"`

	BoxRoot        string `yaml:"box_root"`
	LockRoot       string `yaml:"lock_root"`
	CgRoot         string `yaml:"cg_root"`
	FirstUID       int    `yaml:"first_uid"`
	FirstGID       int    `yaml:"first_gid"`
	RestrictedInit bool   `yaml:"restricted_init"`

	IsolateExePath string `yaml:"isolate_exe_path"`
}

// DefaultPoolConfig matches the defaults of the reference jail service.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		SandboxesCount:        1000,
		ProcessDefaultLimit:   1,
		OpenFilesDefaultLimit: 64,
		MemoryDefaultLimit:    262144,
		StackDefaultLimit:     65536,
		ExtraTimeDefaultLimit: 0.5,
		RealTimeDefaultLimit:  10,
		BoxRoot:               "/.invoker/isolate",
		LockRoot:              "/.invoker/lock",
		CgRoot:                "/sys/fs/cgroup",
		FirstUID:              60000,
		FirstGID:              60000,
		RestrictedInit:        false,
		IsolateExePath:        "/usr/local/bin/isolate",
	}
}

// configFileText renders the text config the jail binary reads from its own
// config path ("box_root=...\nlock_root=...\n..."), one key=value per line.
func (c PoolConfig) configFileText() string {
	return fmt.Sprintf(
		"box_root=%s\nlock_root=%s\ncg_root=%s\nfirst_uid=%d\nfirst_gid=%d\nnum_boxes=%d\nrestricted_init=%t\n",
		c.BoxRoot, c.LockRoot, c.CgRoot, c.FirstUID, c.FirstGID, c.SandboxesCount, c.RestrictedInit,
	)
}
