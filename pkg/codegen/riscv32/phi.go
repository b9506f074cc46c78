package riscv32

// Location names either a physical register or a frame-relative stack slot
// (SP-relative byte offset), the two places a phi-copy's source or
// destination can live.
type Location struct {
	IsReg bool
	Reg   Gpr
	Slot  int32
}

func regLoc(r Gpr) Location        { return Location{IsReg: true, Reg: r} }
func slotLoc(off int32) Location   { return Location{IsReg: false, Slot: off} }
func (l Location) equals(o Location) bool {
	if l.IsReg != o.IsReg {
		return false
	}
	if l.IsReg {
		return l.Reg == o.Reg
	}
	return l.Slot == o.Slot
}

// Move is one location-to-location copy: write Dst with Src's value.
type Move struct {
	Dst Location
	Src Location
}

// SequentializeMoves orders a set of parallel moves (all executing
// "simultaneously", reading every Src before any Dst is overwritten) into a
// safe sequential order, breaking any cycle by routing one edge through
// scratch.
//
// A destination is safe to overwrite once every move that still needs to
// read it as a source has executed (phi shuffles can fan out: several
// destinations may share the same source). A simple chain (a<-b, b<-c)
// resolves by repeatedly picking a destination with zero outstanding
// readers and executing its move, which frees its own source to become
// safe in turn: a<-b first (nothing reads a), which frees b, then b<-c.
// What's left once no destination is ever safe is one or more cycles; break
// each by saving one destination's value to scratch, redirecting every move
// that read it to read scratch instead, and resuming the same process.
func SequentializeMoves(moves []Move, scratch Location) []Move {
	byDst := make(map[Location]Move, len(moves))
	order := make([]Location, 0, len(moves))
	for _, mv := range moves {
		if _, exists := byDst[mv.Dst]; !exists {
			order = append(order, mv.Dst)
		}
		byDst[mv.Dst] = mv
	}

	readers := make(map[Location]int, len(moves))
	for _, mv := range byDst {
		readers[mv.Src]++
	}

	done := make(map[Location]bool, len(moves))
	var ready []Location
	for _, dst := range order {
		if readers[dst] == 0 {
			ready = append(ready, dst)
		}
	}

	release := func(loc Location) {
		if _, isDst := byDst[loc]; !isDst || done[loc] {
			return
		}
		readers[loc]--
		if readers[loc] == 0 {
			ready = append(ready, loc)
		}
	}

	var result []Move
	remaining := len(order)
	for remaining > 0 {
		for len(ready) > 0 {
			dst := ready[len(ready)-1]
			ready = ready[:len(ready)-1]
			if done[dst] {
				continue
			}
			mv := byDst[dst]
			done[dst] = true
			remaining--
			if !mv.Dst.equals(mv.Src) {
				result = append(result, mv)
			}
			release(mv.Src)
		}
		if remaining == 0 {
			break
		}

		// Every destination left is waiting on a reader that's waiting on
		// it: a cycle. Pick the first unresolved one in original order,
		// park its value in scratch, and redirect every move that reads
		// it so the cycle unwinds like an ordinary chain from here.
		var victim Location
		for _, dst := range order {
			if !done[dst] {
				victim = dst
				break
			}
		}
		result = append(result, Move{Dst: scratch, Src: victim})
		for _, dst := range order {
			if !done[dst] && byDst[dst].Src.equals(victim) {
				mv := byDst[dst]
				mv.Src = scratch
				byDst[dst] = mv
			}
		}
		readers[victim] = 0
		ready = append(ready, victim)
	}

	return result
}
