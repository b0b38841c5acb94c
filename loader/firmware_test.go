package loader_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmfrouin/vm/insts"
	"github.com/jmfrouin/vm/loader"
)

var _ = Describe("Firmware codec", func() {
	words := []uint64{
		insts.New(insts.OpMOV, insts.ModeImmediate, 0, 0, 42),
		insts.New(insts.OpMOV, insts.ModeImmediate, 1, 0, 10),
		insts.New(insts.OpADD, insts.ModeRegister, 0, 1, 0),
		insts.New(insts.OpPUSH, insts.ModeRegister, 0, 0, 0),
		insts.New(insts.OpPOP, insts.ModeRegister, 2, 0, 0),
		insts.New(insts.OpHLT, insts.ModeRegister, 0, 0, 0),
	}

	Describe("Encode", func() {
		It("should write the header byte-exactly", func() {
			buf := &bytes.Buffer{}
			createdAt := time.Unix(0x1234_5678, 0)

			err := loader.Encode(buf, words, "demo", 0x40, createdAt)
			Expect(err).NotTo(HaveOccurred())

			data := buf.Bytes()
			Expect(data).To(HaveLen(40 + 4 + 8*len(words)))

			Expect(string(data[0:7])).To(Equal("VMFW001"))
			Expect(data[7]).To(Equal(byte(0)))
			Expect(binary.LittleEndian.Uint32(data[8:12])).To(Equal(uint32(1)))
			Expect(binary.LittleEndian.Uint32(data[12:16])).To(Equal(uint32(len(words))))
			Expect(binary.LittleEndian.Uint64(data[16:24])).To(Equal(uint64(0x40)))
			Expect(binary.LittleEndian.Uint64(data[24:32])).To(Equal(uint64(0x1234_5678)))
			Expect(binary.LittleEndian.Uint32(data[32:36])).To(Equal(uint32(4)))
			Expect(binary.LittleEndian.Uint32(data[36:40])).To(Equal(uint32(0)))
			Expect(string(data[40:44])).To(Equal("demo"))
		})

		It("should write instruction words little-endian", func() {
			buf := &bytes.Buffer{}

			err := loader.Encode(buf, []uint64{0x0102030405060708}, "", 0, time.Unix(0, 0))
			Expect(err).NotTo(HaveOccurred())

			data := buf.Bytes()
			Expect(data[40:48]).To(Equal([]byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}))
		})

		It("should reject an empty word list", func() {
			err := loader.Encode(&bytes.Buffer{}, nil, "", 0, time.Unix(0, 0))
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject an oversized description", func() {
			huge := make([]byte, loader.MaxDescriptionSize+1)
			err := loader.Encode(&bytes.Buffer{}, words, string(huge), 0, time.Unix(0, 0))
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})
	})

	Describe("round trip", func() {
		It("should reload exactly the words that were saved", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prog.vmfw")

			Expect(loader.Save(path, words, "demo", 0)).To(Succeed())

			fw, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(fw.Words).To(Equal(words))
			Expect(fw.EntryPoint).To(BeZero())
			Expect(fw.Description).To(Equal("demo"))
		})

		It("should keep the entry point", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prog.vmfw")

			Expect(loader.Save(path, words, "", 0x80)).To(Succeed())

			fw, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(fw.EntryPoint).To(Equal(uint64(0x80)))
		})
	})

	Describe("validation", func() {
		encode := func(mutate func(data []byte)) *bytes.Reader {
			buf := &bytes.Buffer{}
			Expect(loader.Encode(buf, words, "demo", 0, time.Unix(0, 0))).To(Succeed())
			data := buf.Bytes()
			mutate(data)
			return bytes.NewReader(data)
		}

		It("should reject a bad magic", func() {
			r := encode(func(data []byte) { data[0] = 'X' })
			_, err := loader.Decode(r)
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject an unsupported version", func() {
			r := encode(func(data []byte) {
				binary.LittleEndian.PutUint32(data[8:12], 2)
			})
			_, err := loader.Decode(r)
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject a zero instruction count", func() {
			r := encode(func(data []byte) {
				binary.LittleEndian.PutUint32(data[12:16], 0)
			})
			_, err := loader.Decode(r)
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject an instruction count past the limit", func() {
			r := encode(func(data []byte) {
				binary.LittleEndian.PutUint32(data[12:16], loader.MaxInstructionCount+1)
			})
			_, err := loader.Decode(r)
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject a description size past the limit", func() {
			r := encode(func(data []byte) {
				binary.LittleEndian.PutUint32(data[32:36], loader.MaxDescriptionSize+1)
			})
			_, err := loader.Decode(r)
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject a stream shorter than the instruction count", func() {
			buf := &bytes.Buffer{}
			Expect(loader.Encode(buf, words, "", 0, time.Unix(0, 0))).To(Succeed())
			truncated := buf.Bytes()[:buf.Len()-8]

			_, err := loader.Decode(bytes.NewReader(truncated))
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})

		It("should reject a truncated header", func() {
			_, err := loader.Decode(bytes.NewReader([]byte("VMFW")))
			Expect(errors.Is(err, loader.ErrInvalidFirmware)).To(BeTrue())
		})
	})

	Describe("ReadInfo", func() {
		It("should report the header without the words", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prog.vmfw")
			Expect(loader.Save(path, words, "demo", 0x40)).To(Succeed())

			info, err := loader.ReadInfo(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Version).To(Equal(uint32(1)))
			Expect(info.InstructionCount).To(Equal(uint32(len(words))))
			Expect(info.EntryPoint).To(Equal(uint64(0x40)))
			Expect(info.DescriptionSize).To(Equal(uint32(4)))
		})
	})
})
