package compiler

// composite words expand to a fixed sequence of primitive opcodes at
// compile time. None of them push a control frame; the handful that branch
// (?DUP, ABS, MIN, MAX) compute their jump offsets immediately since the
// span they cover never grows.
//
// The byte templates are part of the output contract and are pinned by
// known-answer tests; changing a template changes every compiled program.
var simpleComposites = map[string]func(e *emitter){
	"ROT": emitRot,
	"NIP": func(e *emitter) {
		e.appendU8(SWAP)
		e.appendU8(DROP)
	},
	"TUCK": func(e *emitter) {
		e.appendU8(SWAP)
		e.appendU8(OVER)
	},
	"NEGATE": func(e *emitter) {
		e.appendU8(LIT0)
		e.appendU8(SWAP)
		e.appendU8(SUB)
	},
	"0=": func(e *emitter) {
		e.appendU8(LIT0)
		e.appendU8(EQ)
	},
	"0<": func(e *emitter) {
		e.appendU8(LIT0)
		e.appendU8(LT)
	},
	"0>": func(e *emitter) {
		e.appendU8(LIT0)
		e.appendU8(GT)
	},
	"2DUP": func(e *emitter) {
		e.appendU8(OVER)
		e.appendU8(OVER)
	},
	"2DROP": func(e *emitter) {
		e.appendU8(DROP)
		e.appendU8(DROP)
	},
	"2SWAP": emit2Swap,
	"2OVER": func(e *emitter) {
		// >R >R OVER OVER R> R> 2SWAP
		e.appendU8(TOR)
		e.appendU8(TOR)
		e.appendU8(OVER)
		e.appendU8(OVER)
		e.appendU8(FROMR)
		e.appendU8(FROMR)
		emit2Swap(e)
	},
	"+!": func(e *emitter) {
		// DUP >R @ + R> !
		e.appendU8(DUP)
		e.appendU8(TOR)
		e.appendU8(LOAD)
		e.appendU8(ADD)
		e.appendU8(FROMR)
		e.appendU8(STORE)
	},
	"TRUE": func(e *emitter) {
		e.appendU8(LITN1)
	},
	"FALSE": func(e *emitter) {
		e.appendU8(LIT0)
	},
	"J": emitJ,
	"K": emitK,
}

// The branching composites below share the func(e *emitter) shape above:
// their JZ/JMP offsets are fixed forward skip counts that do not depend on
// the emitter's position, and lookupComposite dispatches them through the
// branchingComposites map.

// emitQDup emits ?DUP ( x -- 0 | x x ): DUP JZ +1 DUP. If x is zero the
// branch is taken and the trailing DUP is skipped, leaving the single zero;
// otherwise it falls through and duplicates x.
func emitQDup(e *emitter) {
	e.appendU8(DUP)
	e.appendU8(JZ)
	e.appendI16LE(1)
	e.appendU8(DUP)
}

// emitAbs emits ABS ( n -- |n| ): DUP LIT0 < IF LIT0 SWAP - THEN, i.e.
// negate n when it is below zero.
func emitAbs(e *emitter) {
	e.appendU8(DUP)
	e.appendU8(LIT0)
	e.appendU8(LT)
	e.appendU8(JZ)
	e.appendI16LE(3)
	e.appendU8(LIT0)
	e.appendU8(SWAP)
	e.appendU8(SUB)
}

// emitMin emits MIN ( a b -- min(a,b) ): OVER OVER < IF DROP ELSE SWAP DROP THEN.
func emitMin(e *emitter) {
	emitMinMax(e, LT)
}

// emitMax emits MAX ( a b -- max(a,b) ), the same shape as MIN with > in
// place of <.
func emitMax(e *emitter) {
	emitMinMax(e, GT)
}

func emitMinMax(e *emitter, cmp Opcode) {
	e.appendU8(OVER)
	e.appendU8(OVER)
	e.appendU8(cmp)
	e.appendU8(JZ)
	e.appendI16LE(4)
	e.appendU8(DROP)
	e.appendU8(JMP)
	e.appendI16LE(2)
	e.appendU8(SWAP)
	e.appendU8(DROP)
}

// emitRot emits ROT ( a b c -- b c a ): >R SWAP R> SWAP.
func emitRot(e *emitter) {
	e.appendU8(TOR)
	e.appendU8(SWAP)
	e.appendU8(FROMR)
	e.appendU8(SWAP)
}

// emit2Swap emits 2SWAP ( a b c d -- c d a b ): ROT >R ROT R>.
func emit2Swap(e *emitter) {
	emitRot(e)
	e.appendU8(TOR)
	emitRot(e)
	e.appendU8(FROMR)
}

// emitJ emits J, the outer loop index inside a nested DO: R> R> R> DUP >R >R >R.
func emitJ(e *emitter) {
	for i := 0; i < 3; i++ {
		e.appendU8(FROMR)
	}
	e.appendU8(DUP)
	for i := 0; i < 3; i++ {
		e.appendU8(TOR)
	}
}

// emitK emits K, the outer-outer loop index inside a doubly-nested DO:
// R> R> R> R> R> DUP >R >R >R >R >R.
func emitK(e *emitter) {
	for i := 0; i < 5; i++ {
		e.appendU8(FROMR)
	}
	e.appendU8(DUP)
	for i := 0; i < 5; i++ {
		e.appendU8(TOR)
	}
}

// branchingComposite dispatches the four composites whose byte length
// depends on nothing (they are fixed-size) but whose JZ/JMP encode a raw
// forward skip count computed inline rather than via a control frame.
var branchingComposites = map[string]func(e *emitter){
	"?DUP": emitQDup,
	"ABS":  emitAbs,
	"MIN":  emitMin,
	"MAX":  emitMax,
}

// lookupComposite returns the emit function for a composite word name
// (case-insensitive), or nil if name is not a composite.
func lookupComposite(name string) func(e *emitter) {
	if f, ok := simpleComposites[upperASCII(name)]; ok {
		return f
	}
	if f, ok := branchingComposites[upperASCII(name)]; ok {
		return f
	}
	return nil
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
