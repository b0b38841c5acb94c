package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmfrouin/vm/emu"
)

var _ = Describe("ALU", func() {
	var (
		regs *emu.RegFile
		alu  *emu.ALU
	)

	BeforeEach(func() {
		regs = &emu.RegFile{}
		alu = emu.NewALU(regs)
	})

	Describe("Add", func() {
		It("should add and clear the flags on a plain result", func() {
			regs.WriteReg(0, 42)
			alu.Add(0, 10)

			Expect(regs.ReadReg(0)).To(Equal(uint64(52)))
			Expect(regs.GetFlag(emu.FlagZero)).To(BeFalse())
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeFalse())
			Expect(regs.GetFlag(emu.FlagNegative)).To(BeFalse())
		})

		It("should set CARRY on unsigned wrap-around", func() {
			regs.WriteReg(0, ^uint64(0))
			alu.Add(0, 1)

			Expect(regs.ReadReg(0)).To(BeZero())
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())
			Expect(regs.GetFlag(emu.FlagZero)).To(BeTrue())
		})
	})

	Describe("Sub", func() {
		It("should set ZERO when the operands are equal", func() {
			regs.WriteReg(1, 7)
			alu.Sub(1, 7)

			Expect(regs.ReadReg(1)).To(BeZero())
			Expect(regs.GetFlag(emu.FlagZero)).To(BeTrue())
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeFalse())
		})

		It("should set CARRY and NEGATIVE on borrow", func() {
			regs.WriteReg(1, 5)
			alu.Sub(1, 6)

			Expect(regs.ReadReg(1)).To(Equal(^uint64(0)))
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())
			Expect(regs.GetFlag(emu.FlagNegative)).To(BeTrue())
		})
	})

	Describe("Mul", func() {
		It("should keep OVERFLOW clear when the product fits", func() {
			regs.WriteReg(0, 6)
			alu.Mul(0, 7)

			Expect(regs.ReadReg(0)).To(Equal(uint64(42)))
			Expect(regs.GetFlag(emu.FlagOverflow)).To(BeFalse())
		})

		It("should set OVERFLOW when the high half is non-zero", func() {
			regs.WriteReg(0, 1<<33)
			alu.Mul(0, 1<<33)

			Expect(regs.ReadReg(0)).To(BeZero(), "low half of 2^66")
			Expect(regs.GetFlag(emu.FlagOverflow)).To(BeTrue())
			Expect(regs.GetFlag(emu.FlagZero)).To(BeTrue())
		})
	})

	Describe("Div and Mod", func() {
		It("should divide and take remainders", func() {
			regs.WriteReg(0, 17)
			Expect(alu.Div(0, 5)).To(Succeed())
			Expect(regs.ReadReg(0)).To(Equal(uint64(3)))

			regs.WriteReg(1, 17)
			Expect(alu.Mod(1, 5)).To(Succeed())
			Expect(regs.ReadReg(1)).To(Equal(uint64(2)))
		})

		It("should fail on a zero divisor without writing the register", func() {
			regs.WriteReg(0, 17)

			err := alu.Div(0, 0)
			Expect(errors.Is(err, emu.ErrDivisionByZero)).To(BeTrue())
			Expect(regs.ReadReg(0)).To(Equal(uint64(17)))

			err = alu.Mod(0, 0)
			Expect(errors.Is(err, emu.ErrDivisionByZero)).To(BeTrue())
			Expect(regs.ReadReg(0)).To(Equal(uint64(17)))
		})
	})

	Describe("Inc and Dec", func() {
		It("should behave like ADD 1 and SUB 1", func() {
			regs.WriteReg(0, ^uint64(0))
			alu.Inc(0)
			Expect(regs.ReadReg(0)).To(BeZero())
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())

			alu.Dec(0)
			Expect(regs.ReadReg(0)).To(Equal(^uint64(0)))
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue(), "borrow from 0")
			Expect(regs.GetFlag(emu.FlagNegative)).To(BeTrue())
		})
	})

	Describe("Cmp", func() {
		It("should update flags exactly like Sub and write nothing", func() {
			regs.WriteReg(0, 5)
			regs.WriteReg(1, 6)

			alu.Cmp(regs.ReadReg(0), regs.ReadReg(1))
			cmpFlags := regs.Flags

			Expect(regs.ReadReg(0)).To(Equal(uint64(5)))
			Expect(regs.ReadReg(1)).To(Equal(uint64(6)))

			other := &emu.RegFile{}
			otherALU := emu.NewALU(other)
			other.WriteReg(0, 5)
			otherALU.Sub(0, 6)

			Expect(cmpFlags).To(Equal(other.Flags))
		})
	})

	Describe("Swap", func() {
		It("should exchange the registers and flag the new first value", func() {
			regs.WriteReg(0, 0)
			regs.WriteReg(1, 5)

			alu.Swap(0, 1)

			Expect(regs.ReadReg(0)).To(Equal(uint64(5)))
			Expect(regs.ReadReg(1)).To(BeZero())
			Expect(regs.GetFlag(emu.FlagZero)).To(BeFalse())

			alu.Swap(0, 1)
			Expect(regs.GetFlag(emu.FlagZero)).To(BeTrue(), "new R0 is zero")
		})
	})

	Describe("logical operations", func() {
		It("should clear CARRY and OVERFLOW", func() {
			// Set CARRY first via a borrow.
			regs.WriteReg(0, 1)
			alu.Sub(0, 2)
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())

			alu.And(0, 0xFF)
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeFalse())
			Expect(regs.GetFlag(emu.FlagOverflow)).To(BeFalse())
		})

		It("should compute AND, OR, XOR and NOT", func() {
			regs.WriteReg(0, 0b1100)
			alu.And(0, 0b1010)
			Expect(regs.ReadReg(0)).To(Equal(uint64(0b1000)))

			alu.Or(0, 0b0011)
			Expect(regs.ReadReg(0)).To(Equal(uint64(0b1011)))

			alu.Xor(0, 0b1011)
			Expect(regs.ReadReg(0)).To(BeZero())
			Expect(regs.GetFlag(emu.FlagZero)).To(BeTrue())

			alu.Not(0)
			Expect(regs.ReadReg(0)).To(Equal(^uint64(0)))
			Expect(regs.GetFlag(emu.FlagNegative)).To(BeTrue())
		})
	})

	Describe("shifts", func() {
		It("should capture the last bit shifted out in CARRY", func() {
			regs.WriteReg(0, 0x8000000000000001)

			alu.Shl(0, 1)
			Expect(regs.ReadReg(0)).To(Equal(uint64(2)))
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())

			regs.WriteReg(1, 0b11)
			alu.Shr(1, 1)
			Expect(regs.ReadReg(1)).To(Equal(uint64(1)))
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeTrue())
		})

		It("should clear CARRY when the count is zero", func() {
			regs.WriteReg(0, 0xFF)
			alu.Shl(0, 0)

			Expect(regs.ReadReg(0)).To(Equal(uint64(0xFF)))
			Expect(regs.GetFlag(emu.FlagCarry)).To(BeFalse())
		})

		It("should mask the count to the low 6 bits", func() {
			regs.WriteReg(0, 0xFF)
			alu.Shl(0, 64)

			Expect(regs.ReadReg(0)).To(Equal(uint64(0xFF)), "64 & 0x3F == 0")

			regs.WriteReg(0, 0xFF)
			alu.Shl(0, 65)
			Expect(regs.ReadReg(0)).To(Equal(uint64(0x1FE)))
		})
	})
})

var _ = Describe("RegFile", func() {
	var regs *emu.RegFile

	BeforeEach(func() {
		regs = &emu.RegFile{}
	})

	It("should read out-of-range registers as 0", func() {
		Expect(regs.ReadReg(16)).To(BeZero())
		Expect(regs.ReadReg(0xFF)).To(BeZero())
	})

	It("should ignore out-of-range writes", func() {
		regs.WriteReg(16, 42)
		for i := uint8(0); i < emu.RegisterCount; i++ {
			Expect(regs.ReadReg(i)).To(BeZero())
		}
	})

	It("should pack flags into the flag word", func() {
		regs.SetFlag(emu.FlagZero, true)
		regs.SetFlag(emu.FlagNegative, true)

		Expect(regs.Flags).To(Equal(uint32(0b101)))

		regs.SetFlag(emu.FlagZero, false)
		Expect(regs.Flags).To(Equal(uint32(0b100)))
	})
})
