package ir

import (
	"fmt"
	"strings"
)

// PrintFunction renders a human-readable dump of fn. The format is for
// debugging and golden tests, not a stable interchange format.
func (c *Context) PrintFunction(fn FuncID) string {
	f := c.Func(fn)
	if f == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "fn %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, p.Type)
	}
	fmt.Fprintf(&b, ") -> %s {\n", f.Result)
	for _, bid := range f.Blocks {
		blk := c.Block(bid)
		fmt.Fprintf(&b, "%s:\n", blk.Label)
		for _, vid := range blk.Instrs {
			fmt.Fprintf(&b, "  %s\n", c.printInstr(vid))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func (c *Context) printInstr(vid ValueID) string {
	v := c.Value(vid)
	in := &v.Instr
	res := fmt.Sprintf("v%d = ", vid)
	switch in.Kind {
	case InstrBinary:
		names := [...]string{"add", "sub", "mul", "div", "mod", "and", "or", "xor", "lsh", "rsh"}
		return res + fmt.Sprintf("%s %s, %s", names[in.Binary.Op], c.printOperand(in.Binary.Left), c.printOperand(in.Binary.Right))
	case InstrCmp:
		names := [...]string{"eq", "lt", "gt"}
		return res + fmt.Sprintf("cmp %s %s, %s", names[in.Cmp.Pred], c.printOperand(in.Cmp.Left), c.printOperand(in.Cmp.Right))
	case InstrLoad:
		return res + fmt.Sprintf("load %s", c.printOperand(in.Load.Ptr))
	case InstrStore:
		return fmt.Sprintf("store %s, %s", c.printOperand(in.Store.Ptr), c.printOperand(in.Store.Val))
	case InstrGetPtr:
		return res + fmt.Sprintf("get_ptr %s +%d", c.printOperand(in.GetPtr.Base), in.GetPtr.WordOffset)
	case InstrStackAlloc:
		return res + fmt.Sprintf("stack_alloc %s", in.StackAlloc.Alloc)
	case InstrIntCast:
		return res + fmt.Sprintf("cast %s to %s", c.printOperand(in.IntCast.Val), in.IntCast.To)
	case InstrCall:
		args := make([]string, len(in.Call.Args))
		for i, a := range in.Call.Args {
			args[i] = c.printOperand(a)
		}
		callee := "?"
		if cf := c.Func(in.Call.Callee); cf != nil {
			callee = cf.Name
		}
		return res + fmt.Sprintf("call %s(%s)", callee, strings.Join(args, ", "))
	case InstrBranch:
		return fmt.Sprintf("br %s", c.blockLabel(in.Branch.Target))
	case InstrCondBranch:
		return fmt.Sprintf("cbr %s, %s, %s", c.printOperand(in.CondBranch.Cond), c.blockLabel(in.CondBranch.Then), c.blockLabel(in.CondBranch.Else))
	case InstrRet:
		return fmt.Sprintf("ret %s", c.printOperand(in.Ret.Val))
	case InstrRetData:
		return fmt.Sprintf("retd %s, %s", c.printOperand(in.RetData.Ptr), c.printOperand(in.RetData.Len))
	case InstrRevert:
		return fmt.Sprintf("rvrt %s", c.printOperand(in.Revert.Code))
	case InstrJumpIndirect:
		return fmt.Sprintf("jmpi %s", c.printOperand(in.JumpIndirect.Target))
	}
	return res + "?"
}

func (c *Context) printOperand(vid ValueID) string {
	v := c.Value(vid)
	if v == nil {
		return fmt.Sprintf("v%d?", vid)
	}
	if v.Kind == ValueConstant {
		return v.Const.String()
	}
	return fmt.Sprintf("v%d", vid)
}

func (c *Context) blockLabel(bid BlockID) string {
	if b := c.Block(bid); b != nil {
		return b.Label
	}
	return fmt.Sprintf("bb%d?", bid)
}
