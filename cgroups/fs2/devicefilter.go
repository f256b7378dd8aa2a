package fs2

import (
	"fmt"

	"github.com/cilium/ebpf/asm"

	"github.com/anyawal/corerun/configs"
)

// bpf_cgroup_dev_ctx's access_type packs the device type (block=1,
// char=2) in its low 16 bits and the access mode bitmask in its high 16
// bits; major/minor follow as separate u32 fields. These numbers come
// from the kernel's uapi/linux/bpf.h, not from anything configurable.
const (
	devTypeBlock = 1
	devTypeChar  = 2

	accMknod = 1
	accRead  = 2
	accWrite = 4
)

// buildDeviceProgram compiles rules into a BPF_PROG_TYPE_CGROUP_DEVICE
// program: each rule is tried in order and the first match decides
// allow/deny, falling through to deny if nothing matches. This is the
// same append-only, first-match-wins semantics the v1 devices.allow/
// devices.deny files give (cgroups/fs/devices.go), the only form v2's
// eBPF-only device control can express.
func buildDeviceProgram(rules []configs.DeviceRule) (asm.Instructions, string, error) {
	b := &filterBuilder{}
	b.prologue()
	for i, r := range rules {
		label := ""
		if i > 0 {
			label = ruleLabel(i)
		}
		if err := b.rule(r, label, ruleLabel(i+1)); err != nil {
			return nil, "", err
		}
	}
	b.insts = append(b.insts,
		asm.Mov.Imm32(asm.R0, 0).Sym(ruleLabel(len(rules))),
		asm.Return(),
	)
	return b.insts, "Apache-2.0", nil
}

func ruleLabel(i int) string {
	return fmt.Sprintf("rule%d", i)
}

type filterBuilder struct {
	insts asm.Instructions
}

// prologue loads R2 (device type), R3 (major), R4 (minor) and R6
// (access mode) out of the context struct pointed to by R1. R5 is left
// free for each rule to mask against its own permission bits.
func (b *filterBuilder) prologue() {
	b.insts = append(b.insts,
		asm.LoadMem(asm.R2, asm.R1, 0, asm.Word),
		asm.And.Imm32(asm.R2, 0xffff),
		asm.LoadMem(asm.R6, asm.R1, 0, asm.Word),
		asm.RSh.Imm32(asm.R6, 16),
		asm.LoadMem(asm.R3, asm.R1, 4, asm.Word),
		asm.LoadMem(asm.R4, asm.R1, 8, asm.Word),
	)
}

// rule appends one rule's checks. label, if non-empty, is attached to
// the first instruction emitted so the previous rule's failed match can
// jump straight here; next names the label to jump to on a failed
// match of this rule.
func (b *filterBuilder) rule(r configs.DeviceRule, label, next string) error {
	var devType int32
	switch r.Type {
	case 'a':
		devType = 0
	case 'b':
		devType = devTypeBlock
	case 'c':
		devType = devTypeChar
	default:
		return fmt.Errorf("unsupported device rule type %q", string(r.Type))
	}

	var accMask int32
	for _, p := range r.Permissions {
		switch p {
		case 'r':
			accMask |= accRead
		case 'w':
			accMask |= accWrite
		case 'm':
			accMask |= accMknod
		}
	}
	if accMask == 0 {
		accMask = accRead | accWrite | accMknod
	}

	mark := func(i asm.Instruction) asm.Instruction {
		if label != "" {
			i = i.Sym(label)
			label = ""
		}
		return i
	}

	if devType != 0 {
		b.insts = append(b.insts, mark(asm.JNE.Imm(asm.R2, devType, next)))
	}
	if r.Major >= 0 {
		b.insts = append(b.insts, mark(asm.JNE.Imm(asm.R3, int32(r.Major), next)))
	}
	if r.Minor >= 0 {
		b.insts = append(b.insts, mark(asm.JNE.Imm(asm.R4, int32(r.Minor), next)))
	}
	b.insts = append(b.insts,
		mark(asm.Mov.Reg(asm.R5, asm.R6)),
		asm.And.Imm32(asm.R5, accMask),
		asm.JEq.Imm(asm.R5, 0, next),
	)

	allow := int32(0)
	if r.Allow {
		allow = 1
	}
	b.insts = append(b.insts, asm.Mov.Imm32(asm.R0, allow), asm.Return())
	return nil
}
