// Package compileinfo reports the module version and VCS state a binary was
// built from, so that results can be traced back to the code that made them.
package compileinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

type CompileInfo struct {
	Binary     string
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	if c.GoVersion == "" {
		return "No build information is embedded in this binary."
	}

	commit := c.Commit
	if commit == "" {
		commit = "unknown"
	}
	dirty := ""
	if c.Modified {
		dirty = " (with uncommitted changes)"
	}

	return fmt.Sprintf("%s from %s %s, %s, commit %s%s %s", c.Binary, c.Module, c.Version, c.GoVersion, commit, dirty, c.CommitTime)
}

func Get() CompileInfo {
	out := CompileInfo{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = bi.GoVersion
	out.Binary = bi.Path
	out.Module = bi.Main.Path
	out.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

// Banner prefixes the build information with the name of the command, so
// that logs of several multiwgcna tools can be told apart.
func (c CompileInfo) Banner(command string) string {
	return command + ": " + c.String()
}

// Fprint writes the build information of the running binary to w, headed by
// command.
func Fprint(w io.Writer, command string) {
	fmt.Fprintln(w, Get().Banner(command))
}
