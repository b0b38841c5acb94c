package timing_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmfrouin/vm/emu"
	"github.com/jmfrouin/vm/insts"
	"github.com/jmfrouin/vm/timing"
	"github.com/jmfrouin/vm/timing/cache"
	"github.com/jmfrouin/vm/timing/latency"
)

var _ = Describe("Estimator", func() {
	var (
		table *latency.Table
		regs  *emu.RegFile
	)

	BeforeEach(func() {
		table = latency.NewTable()
		regs = &emu.RegFile{SP: 0x1000}
	})

	Context("without a cache", func() {
		var est *timing.Estimator

		BeforeEach(func() {
			est = timing.NewEstimator(table, nil)
		})

		It("should charge the table latency only", func() {
			add := &insts.Instruction{Opcode: insts.OpADD, Mode: insts.ModeRegister}
			Expect(est.Cycles(add, regs)).To(Equal(table.Config().ALULatency))

			div := &insts.Instruction{Opcode: insts.OpDIV, Mode: insts.ModeRegister}
			Expect(est.Cycles(div, regs)).To(Equal(table.Config().DivideLatency))
		})
	})

	Context("with a cache", func() {
		var est *timing.Estimator

		BeforeEach(func() {
			est = timing.NewEstimator(table, cache.New(cache.DefaultDataConfig()))
		})

		It("should charge a miss on first touch and a hit after", func() {
			load := &insts.Instruction{
				Opcode: insts.OpLOAD,
				Mode:   insts.ModeImmediate,
				Reg1:   1,
				Imm:    0x100000,
			}

			cold := est.Cycles(load, regs)
			warm := est.Cycles(load, regs)

			Expect(cold).To(BeNumerically(">", warm))
			Expect(warm).To(Equal(table.Config().LoadLatency + est.Cache().Config().HitLatency))
		})

		It("should track stack traffic for PUSH and POP", func() {
			push := &insts.Instruction{Opcode: insts.OpPUSH, Mode: insts.ModeRegister}
			pop := &insts.Instruction{Opcode: insts.OpPOP, Mode: insts.ModeRegister}

			est.Cycles(push, regs) // write at SP-8, warms the block
			regs.SP -= 8
			est.Cycles(pop, regs) // read at SP, same block

			stats := est.Cache().Stats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should not charge memory traffic for register operands", func() {
			add := &insts.Instruction{Opcode: insts.OpADD, Mode: insts.ModeRegister}

			Expect(est.Cycles(add, regs)).To(Equal(table.Config().ALULatency))
			Expect(est.Cache().Stats().Reads).To(BeZero())
		})

		It("should charge memory-mode operand reads", func() {
			cmp := &insts.Instruction{
				Opcode: insts.OpCMP,
				Mode:   insts.ModeMemory,
				Imm:    0x100000,
			}

			est.Cycles(cmp, regs)
			Expect(est.Cache().Stats().Reads).To(Equal(uint64(1)))
		})
	})

	Context("attached to an emulator", func() {
		It("should accumulate cycles during a run without changing results", func() {
			est := timing.NewEstimator(table, cache.New(cache.DefaultDataConfig()))

			mem := emu.NewMemory(16 * 1024 * 1024)
			e := emu.NewEmulator(mem,
				emu.WithStdout(&bytes.Buffer{}),
				emu.WithStderr(&bytes.Buffer{}),
				emu.WithMaxInstructions(1000),
				emu.WithCycleModel(est),
			)

			words := []uint64{
				insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 42),
				insts.New(insts.OpPUSH, insts.ModeRegister, 0, 0, 0),
				insts.New(insts.OpPOP, insts.ModeRegister, 2, 0, 0),
				insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
			}
			for i, w := range words {
				Expect(mem.Write64(uint64(i)*8, w)).To(Succeed())
			}
			e.SetPC(0)

			Expect(e.Run()).To(Succeed())

			Expect(e.GetRegister(2)).To(Equal(uint64(42)))
			Expect(e.CycleCount()).To(BeNumerically(">", e.InstructionCount()))
		})
	})
})
