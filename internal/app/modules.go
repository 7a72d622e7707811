package app

import (
	"io"

	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/modules/env_vars"
	"github.com/specialistvlad/stepgrid/modules/http_request"
	prnt "github.com/specialistvlad/stepgrid/modules/print"
	"github.com/specialistvlad/stepgrid/modules/s3"
	"github.com/specialistvlad/stepgrid/modules/socketio"
)

// CoreModules is the list of all modules compiled into the stepgrid
// binary. The print module writes to out.
func CoreModules(out io.Writer) []registry.Module {
	return []registry.Module{
		&env_vars.Module{},
		&prnt.Module{Out: out},
		&http_request.Module{},
		&s3.Module{},
		&socketio.Module{},
	}
}
