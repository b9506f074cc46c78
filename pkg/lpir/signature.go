package lpir

// Signature is a function's parameter and return type list. A function may
// return more than one value; the first 8 parameters/returns are passed in
// registers, index >= 8 goes on the stack (see pkg/abi).
type Signature struct {
	Params  []Type
	Returns []Type
}

// Empty returns a signature with no parameters or returns.
func EmptySignature() Signature {
	return Signature{}
}
