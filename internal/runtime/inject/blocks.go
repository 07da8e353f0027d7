package inject

import (
	"fmt"

	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/internal/wasm"
)

// Block is the half open range [Start, End) of a function body that always
// executes as a unit once entered, with the summed weight of its instructions.
type Block struct {
	Start int
	End   int
	Cost  uint64
}

// Blocks partitions code into metered blocks. A block starts at the function
// entry and after every instruction that may transfer control (block, loop,
// if, else, end, branches, return, unreachable and calls). An else or end is
// therefore charged together with the block that falls through it.
func Blocks(code []wasm.Instruction, rules gas.Rules) ([]Block, error) {
	var blocks []Block
	cur := Block{}
	for i := range code {
		w, ok := rules.InstructionCost(&code[i])
		if !ok {
			return nil, fmt.Errorf("no weight for instruction %s at %d", code[i].Opcode, i)
		}
		cur.Cost += uint64(w)
		if code[i].EndsBlock() || i == len(code)-1 {
			cur.End = i + 1
			blocks = append(blocks, cur)
			cur = Block{Start: i + 1}
		}
	}
	return blocks, nil
}
