package emulator

import "encoding/binary"

// DefaultRAMOffset is the address at which the RAM region begins when a
// Memory is constructed without an explicit split point. Code occupies
// [0, DefaultRAMOffset), RAM occupies [DefaultRAMOffset, DefaultRAMOffset +
// len(ram)).
const DefaultRAMOffset = 0x10000

// Memory is the emulator's split code/RAM address space: code is read-only
// and starts at address 0, RAM starts at ramOffset and is read/write.
type Memory struct {
	code      []byte
	ram       []byte
	ramOffset uint32
}

// NewMemory builds a Memory with the default code/RAM split.
func NewMemory(code, ram []byte) *Memory {
	return WithRAMOffset(code, ram, DefaultRAMOffset)
}

// WithRAMOffset builds a Memory whose RAM region begins at the given
// address rather than DefaultRAMOffset.
func WithRAMOffset(code, ram []byte, ramOffset uint32) *Memory {
	return &Memory{code: code, ram: ram, ramOffset: ramOffset}
}

// Code returns the code region's backing bytes, for disassembly/inspection.
func (m *Memory) Code() []byte { return m.code }

// RAM returns the RAM region's backing bytes, for inspection.
func (m *Memory) RAM() []byte { return m.ram }

func (m *Memory) inCode(addr uint32, size uint32) bool {
	return addr+size <= uint32(len(m.code)) && addr < m.ramOffset
}

func (m *Memory) inRAM(addr uint32, size uint32) bool {
	if addr < m.ramOffset {
		return false
	}
	off := addr - m.ramOffset
	return off+size <= uint32(len(m.ram))
}

// FetchInstruction reads a 4-byte instruction word from the code region.
func (m *Memory) FetchInstruction(pc uint32) (uint32, error) {
	if pc%4 != 0 {
		return 0, &Error{Kind: ErrUnalignedAccess, Addr: pc}
	}
	if !m.inCode(pc, 4) {
		return 0, &Error{Kind: ErrInvalidMemoryAccess, Addr: pc}
	}
	return binary.LittleEndian.Uint32(m.code[pc : pc+4]), nil
}

// ReadWord reads a 4-byte word at addr, from either region.
func (m *Memory) ReadWord(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, &Error{Kind: ErrUnalignedAccess, Addr: addr}
	}
	b, err := m.readBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadHalf reads a 2-byte halfword at addr.
func (m *Memory) ReadHalf(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		return 0, &Error{Kind: ErrUnalignedAccess, Addr: addr}
	}
	b, err := m.readBytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadByte reads a single byte at addr.
func (m *Memory) ReadByte(addr uint32) (uint8, error) {
	b, err := m.readBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteWord writes a 4-byte word at addr; addr must fall in RAM.
func (m *Memory) WriteWord(addr uint32, v uint32) error {
	if addr%4 != 0 {
		return &Error{Kind: ErrUnalignedAccess, Addr: addr}
	}
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return m.writeBytes(addr, tmp[:])
}

// WriteHalf writes a 2-byte halfword at addr; addr must fall in RAM.
func (m *Memory) WriteHalf(addr uint32, v uint16) error {
	if addr%2 != 0 {
		return &Error{Kind: ErrUnalignedAccess, Addr: addr}
	}
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return m.writeBytes(addr, tmp[:])
}

// WriteByte writes a single byte at addr; addr must fall in RAM.
func (m *Memory) WriteByte(addr uint32, v uint8) error {
	return m.writeBytes(addr, []byte{v})
}

// ReadBytes returns a copy of n bytes starting at addr, from either region;
// used by syscall handling to pull host-visible buffers out of guest
// memory.
func (m *Memory) ReadBytes(addr uint32, n int) ([]byte, error) {
	return m.readBytes(addr, uint32(n))
}

// ReadCString reads a NUL-terminated string starting at addr, scanning
// only within the region addr falls in.
func (m *Memory) ReadCString(addr uint32) (string, error) {
	var region []byte
	var base uint32
	switch {
	case addr < m.ramOffset:
		region, base = m.code, 0
	default:
		region, base = m.ram, m.ramOffset
	}
	off := addr - base
	if off > uint32(len(region)) {
		return "", &Error{Kind: ErrInvalidMemoryAccess, Addr: addr}
	}
	end := off
	for end < uint32(len(region)) && region[end] != 0 {
		end++
	}
	return string(region[off:end]), nil
}

func (m *Memory) readBytes(addr, size uint32) ([]byte, error) {
	if m.inCode(addr, size) {
		return m.code[addr : addr+size], nil
	}
	if m.inRAM(addr, size) {
		off := addr - m.ramOffset
		return m.ram[off : off+size], nil
	}
	return nil, &Error{Kind: ErrInvalidMemoryAccess, Addr: addr}
}

func (m *Memory) writeBytes(addr uint32, data []byte) error {
	if !m.inRAM(addr, uint32(len(data))) {
		return &Error{Kind: ErrInvalidMemoryAccess, Addr: addr}
	}
	off := addr - m.ramOffset
	copy(m.ram[off:], data)
	return nil
}
