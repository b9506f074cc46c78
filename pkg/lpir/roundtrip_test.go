package lpir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roundtripSource = `
module {
entry: %main

function %helper(i32) -> i32 {
block0(v0: i32):
    v1 = iconst 1
    v2 = iadd v0, v1
    return v2
}

function %main() -> i32 {
block0:
    v0 = iconst 10
    v1 = iconst 20
    v2 = icmp slt, v0, v1
    brif v2, block1, block2
block1:
    v3 = iadd v0, v1
    jump block3(v3)
block2:
    v4 = isub v1, v0
    jump block3(v4)
block3(v5: i32):
    v6 = call %helper(v5)
    return v6
}
}`

// functionShape is everything about a function that PrintModule/ParseModule
// should round-trip losslessly: its blocks, their parameters, and each
// instruction's full payload, all via exported fields so cmp.Diff needs no
// unexported-field allowance.
type functionShape struct {
	Name   string
	Blocks []blockShape
}

type blockShape struct {
	Params []Value
	Insts  []InstData
}

func shapeOf(fn *Function) functionShape {
	shape := functionShape{Name: fn.Name}
	for _, b := range fn.Layout.Blocks() {
		bs := blockShape{Params: fn.DFG.BlockParams(b)}
		for _, inst := range fn.Layout.BlockInsts(b) {
			bs.Insts = append(bs.Insts, *fn.DFG.Inst(inst))
		}
		shape.Blocks = append(shape.Blocks, bs)
	}
	return shape
}

func shapeOfModule(mod *Module) []functionShape {
	var out []functionShape
	for _, fn := range mod.Functions() {
		out = append(out, shapeOf(fn))
	}
	return out
}

// TestParsePrintRoundTripPreservesStructure parses a module, prints it back
// to text, reparses that text, and diffs the two parses' instruction
// structure with cmp, so a formatting change in the printer can never
// silently drop or reorder an operand.
func TestParsePrintRoundTripPreservesStructure(t *testing.T) {
	mod1, err := ParseModule(roundtripSource)
	require.NoError(t, err)

	printed := PrintModule(mod1)

	mod2, err := ParseModule(printed)
	require.NoError(t, err, "reparsing printed output:\n%s", printed)

	if diff := cmp.Diff(shapeOfModule(mod1), shapeOfModule(mod2)); diff != "" {
		t.Errorf("round trip changed function structure (-original +reprinted):\n%s", diff)
	}

	name1, ok1 := mod1.EntryName()
	name2, ok2 := mod2.EntryName()
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, name1, name2)
}

func TestParseModuleRejectsEmptyInput(t *testing.T) {
	_, err := ParseModule("   \n  ")
	assert.Error(t, err)
}

func TestVerifyModuleAcceptsWellFormedModule(t *testing.T) {
	mod, err := ParseModule(roundtripSource)
	require.NoError(t, err)

	errs := VerifyModule(mod)
	assert.Empty(t, errs)
}

// ParseModule runs full verification as part of parsing (validateParsedModule),
// so a module whose entry name has no matching function fails to parse at
// all rather than parsing and only failing a later, separate VerifyModule
// call.
func TestParseModuleRejectsUnknownEntry(t *testing.T) {
	src := `
module {
entry: %missing

function %main() -> i32 {
block0:
    v0 = iconst 1
    return v0
}
}`
	_, err := ParseModule(src)
	assert.Error(t, err)
}
