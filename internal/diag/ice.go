package diag

import "fmt"

// ICE is an internal compiler error: an invariant the pipeline was supposed
// to uphold was observed broken. It always indicates a bug in an earlier
// stage, never bad user input.
type ICE struct {
	Stage string
	Msg   string
}

func (e ICE) Error() string {
	return fmt.Sprintf("internal compiler error [%s]: %s", e.Stage, e.Msg)
}

// Internalf panics with an ICE. Callers at the driver boundary recover the
// panic and convert it into a SevInternal diagnostic.
func Internalf(stage, format string, args ...any) {
	panic(ICE{Stage: stage, Msg: fmt.Sprintf(format, args...)})
}
