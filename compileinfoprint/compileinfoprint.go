// Package compileinfoprint is imported by the multiwgcna commands for the
// side effect of logging, at startup, which command is running and the code
// it was built from.
package compileinfoprint

import (
	"os"
	"path/filepath"

	"github.com/carbocation/multiwgcna/compileinfo"
)

func init() {
	compileinfo.Fprint(os.Stderr, filepath.Base(os.Args[0]))
}
