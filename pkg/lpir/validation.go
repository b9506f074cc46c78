package lpir

import "fmt"

// validateParsedFunction runs the verifier against a freshly parsed function
// (no enclosing module, so cross-function call checks are skipped) and
// converts the first failure, if any, into a *ParseError so parse failures
// and validation failures share one error type at the ParseFunction/
// ParseModule boundary.
func validateParsedFunction(fn *Function) error {
	errs := VerifyFunction(fn, nil)
	if len(errs) == 0 {
		return nil
	}
	pos := 0
	if fn.SourcePos != nil {
		if ve, ok := errs[0].(*VerifierError); ok && ve.HasInst {
			if p, ok := fn.SourcePos[ve.Inst]; ok {
				pos = p
			}
		}
	}
	return &ParseError{Message: fmt.Sprintf("validation failed: %s", errs[0].Error()), Position: pos}
}

// validateParsedModule runs the verifier against every function in mod,
// cross-checking calls against the module's function table, and reports the
// first failure as a *ParseError.
func validateParsedModule(mod *Module) error {
	errs := VerifyModule(mod)
	if len(errs) == 0 {
		return nil
	}
	return &ParseError{Message: fmt.Sprintf("validation failed: %s", errs[0].Error()), Position: 0}
}
