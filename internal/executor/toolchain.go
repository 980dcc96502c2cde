package executor

import "path/filepath"

// Invocation is one external toolchain process: the program, its
// arguments, and the working directory to run it in.
type Invocation struct {
	Program string
	Args    []string
	Dir     string
}

// Toolchain turns abstract build steps into concrete invocations. It
// performs no I/O itself; a CommandRunner executes the result.
type Toolchain interface {
	// Compile produces the invocation that compiles one source file to
	// an object file.
	Compile(src, obj string, flags, includeDirs []string) Invocation
	// Archive produces the invocation that archives object files into
	// a static library.
	Archive(archive string, objs []string) Invocation
	// Link produces the invocation that links objects and library
	// archives into an executable. libs must be passed in dependency
	// order.
	Link(binary string, objs, libs, flags []string) Invocation
}

// GNU is the default toolchain: a gcc-compatible compiler driver plus
// binutils ar.
type GNU struct {
	CC string
	AR string
}

// NewGNU creates a GNU toolchain. Empty strings select gcc and ar.
func NewGNU(cc, ar string) *GNU {
	if cc == "" {
		cc = "gcc"
	}
	if ar == "" {
		ar = "ar"
	}
	return &GNU{CC: cc, AR: ar}
}

func (g *GNU) Compile(src, obj string, flags, includeDirs []string) Invocation {
	args := []string{"-c", src, "-o", obj}
	for _, dir := range includeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, flags...)
	return Invocation{Program: g.CC, Args: args, Dir: filepath.Dir(src)}
}

func (g *GNU) Archive(archive string, objs []string) Invocation {
	args := append([]string{"rcs", archive}, objs...)
	return Invocation{Program: g.AR, Args: args, Dir: filepath.Dir(archive)}
}

func (g *GNU) Link(binary string, objs, libs, flags []string) Invocation {
	args := []string{"-o", binary}
	args = append(args, objs...)
	args = append(args, libs...)
	args = append(args, flags...)
	return Invocation{Program: g.CC, Args: args, Dir: filepath.Dir(binary)}
}
