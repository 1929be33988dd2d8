package manifest

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
)

// schemaSource constrains derw.toml. Definitions are closed, so unknown
// keys are rejected along with bad values.
const schemaSource = `
#Manifest: {
	package: {
		name:     =~"^[A-Za-z][A-Za-z0-9_.-]*$"
		version?: =~"^[0-9]+\\.[0-9]+\\.[0-9]+"
	}
	source?: {
		dirs?: [...string]
		entry?: [...=~"\\.derw$"]
	}
	build?: {
		target?: "ts" | "js" | "derw" | "elm"
		output?: string & !=""
		verify?: bool
		cache?:  bool
	}
}
`

// ErrInvalid is wrapped by every schema violation.
var ErrInvalid = errors.New("manifest does not match schema")

// Validate checks raw derw.toml contents against the manifest schema.
func Validate(data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling manifest schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}
