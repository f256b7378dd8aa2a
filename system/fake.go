package system

// Fake is an in-memory Syscaller double used by tests that exercise the
// namespace/rootfs/process packages' control flow without requiring
// CAP_SYS_ADMIN, matching spec.md §2.1's stated purpose for this
// interface ("exists solely to permit substitution by a test double").
type Fake struct {
	Mounts    []FakeMount
	PivotedTo string
	Unshared  int
	Hostname  string
	Chrooted  string
	Chdired   string
	FailOn    string
}

type FakeMount struct {
	Source, Target, FSType, Data string
	Flags                        uintptr
}

func (f *Fake) err(op string) error {
	if f.FailOn == op {
		return fakeErr(op)
	}
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return "fake failure injected at " + string(e) }

func (f *Fake) Mount(source, target, fstype string, flags uintptr, data string) error {
	if err := f.err("mount"); err != nil {
		return err
	}
	f.Mounts = append(f.Mounts, FakeMount{source, target, fstype, data, flags})
	return nil
}

func (f *Fake) Unmount(target string, flags int) error { return f.err("unmount") }

func (f *Fake) PivotRoot(newRoot, putOld string) error {
	if err := f.err("pivot_root"); err != nil {
		return err
	}
	f.PivotedTo = newRoot
	return nil
}

func (f *Fake) Unshare(flags int) error {
	f.Unshared |= flags
	return f.err("unshare")
}

func (f *Fake) Setns(fd int, nstype int) error { return f.err("setns") }

func (f *Fake) Sethostname(name string) error {
	if err := f.err("sethostname"); err != nil {
		return err
	}
	f.Hostname = name
	return nil
}

func (f *Fake) Chroot(dir string) error {
	f.Chrooted = dir
	return f.err("chroot")
}

func (f *Fake) Chdir(dir string) error {
	f.Chdired = dir
	return f.err("chdir")
}

func (f *Fake) Prctl(option int, a2, a3, a4, a5 uintptr) error { return f.err("prctl") }

func (f *Fake) Mknod(path string, mode uint32, dev int) error { return f.err("mknod") }

func (f *Fake) Symlink(oldname, newname string) error { return f.err("symlink") }
