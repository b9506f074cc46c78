package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleFrameNoCalls(t *testing.T) {
	l := Compute(nil, CallsNone, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(0), l.SetupAreaSize)
	assert.Equal(t, uint32(0), l.ClobberSize)
	assert.Equal(t, uint32(4), l.WordBytes)
}

func TestFrameWithCalls(t *testing.T) {
	l := Compute(nil, CallsRegular, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(8), l.SetupAreaSize)
	assert.Equal(t, uint32(0), l.ClobberSize)
}

func TestFrameWithClobberedRegisters(t *testing.T) {
	l := Compute([]string{"s1", "s2"}, CallsRegular, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(8), l.SetupAreaSize)
	assert.Equal(t, uint32(16), l.ClobberSize)
	assert.Len(t, l.ClobberedCalleeSaves, 2)
}

func TestFrameWithIncomingArgs(t *testing.T) {
	l := Compute(nil, CallsNone, 16, 16, 0, 0, 0, false)
	assert.Equal(t, uint32(8), l.SetupAreaSize)
	assert.Equal(t, uint32(16), l.IncomingArgsSize)
}

func TestFrameWithOutgoingArgs(t *testing.T) {
	l := Compute(nil, CallsRegular, 0, 0, 0, 0, 32, false)
	assert.Equal(t, uint32(8), l.SetupAreaSize)
	assert.Equal(t, uint32(32), l.OutgoingArgsSize)
}

func TestClobberSizeAlignment(t *testing.T) {
	l1 := Compute([]string{"s1"}, CallsRegular, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(16), l1.ClobberSize)

	l2 := Compute([]string{"s1", "s2", "s3", "s4"}, CallsRegular, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(16), l2.ClobberSize)

	l3 := Compute([]string{"s1", "s2", "s3", "s4", "s5"}, CallsRegular, 0, 0, 0, 0, 0, false)
	assert.Equal(t, uint32(32), l3.ClobberSize)
}
