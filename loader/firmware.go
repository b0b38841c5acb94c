// Package loader reads and writes the firmware container used to
// persist programs as flat binary files.
//
// File layout (all integers little-endian):
//
//	offset  size  field
//	0       7     magic = "VMFW001"
//	7       1     null terminator (0x00)
//	8       4     version (= 1)
//	12      4     instruction count
//	16      8     entry point
//	24      8     creation timestamp (unix seconds)
//	32      4     description size D
//	36      4     reserved (= 0)
//	40      D     description (UTF-8, no NUL)
//	40+D    8*N   instruction words
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Magic is the firmware file signature.
const Magic = "VMFW001"

// Version is the only supported container version.
const Version = 1

// Container bounds enforced on load and save.
const (
	MaxInstructionCount = 1_000_000
	MaxDescriptionSize  = 10_000
)

const headerSize = 40

// ErrInvalidFirmware is returned when a file fails header or bounds
// validation.
var ErrInvalidFirmware = errors.New("invalid firmware")

// Firmware is a decoded firmware image.
type Firmware struct {
	// Words are the instruction words in program order.
	Words []uint64

	// EntryPoint is the PC value for the first run.
	EntryPoint uint64

	// Description is the optional human-readable note stored in the
	// container.
	Description string

	// CreatedAt is the creation timestamp recorded at save time.
	CreatedAt time.Time
}

// Info is the parsed header of a firmware file, without the words.
type Info struct {
	Version          uint32
	InstructionCount uint32
	EntryPoint       uint64
	CreatedAt        time.Time
	DescriptionSize  uint32
}

// Save writes a firmware file. The instruction words are encoded
// explicitly little-endian so the container is identical on all hosts.
func Save(path string, words []uint64, description string, entryPoint uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create firmware file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Encode(f, words, description, entryPoint, time.Now()); err != nil {
		return err
	}

	return f.Close()
}

// Encode writes the container to w.
func Encode(w io.Writer, words []uint64, description string, entryPoint uint64, createdAt time.Time) error {
	if len(words) == 0 || len(words) > MaxInstructionCount {
		return fmt.Errorf("instruction count %d out of range [1, %d]: %w",
			len(words), MaxInstructionCount, ErrInvalidFirmware)
	}
	if len(description) > MaxDescriptionSize {
		return fmt.Errorf("description size %d exceeds %d: %w",
			len(description), MaxDescriptionSize, ErrInvalidFirmware)
	}

	var header [headerSize]byte
	copy(header[0:7], Magic)
	header[7] = 0
	binary.LittleEndian.PutUint32(header[8:12], Version)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(words)))
	binary.LittleEndian.PutUint64(header[16:24], entryPoint)
	binary.LittleEndian.PutUint64(header[24:32], uint64(createdAt.Unix()))
	binary.LittleEndian.PutUint32(header[32:36], uint32(len(description)))
	binary.LittleEndian.PutUint32(header[36:40], 0)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write firmware header: %w", err)
	}
	if len(description) > 0 {
		if _, err := io.WriteString(w, description); err != nil {
			return fmt.Errorf("write firmware description: %w", err)
		}
	}

	word := make([]byte, 8)
	for _, instr := range words {
		binary.LittleEndian.PutUint64(word, instr)
		if _, err := w.Write(word); err != nil {
			return fmt.Errorf("write instruction word: %w", err)
		}
	}

	return nil
}

// Load reads and validates a firmware file.
func Load(path string) (*Firmware, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open firmware file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode reads the container from r. Validation failures surface as
// ErrInvalidFirmware; nothing partial is returned.
func Decode(r io.Reader) (*Firmware, error) {
	info, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	desc := make([]byte, info.DescriptionSize)
	if _, err := io.ReadFull(r, desc); err != nil {
		return nil, fmt.Errorf("truncated description: %w", ErrInvalidFirmware)
	}

	fw := &Firmware{
		Words:       make([]uint64, info.InstructionCount),
		EntryPoint:  info.EntryPoint,
		Description: string(desc),
		CreatedAt:   info.CreatedAt,
	}

	word := make([]byte, 8)
	for i := range fw.Words {
		if _, err := io.ReadFull(r, word); err != nil {
			return nil, fmt.Errorf("truncated at instruction %d: %w", i, ErrInvalidFirmware)
		}
		fw.Words[i] = binary.LittleEndian.Uint64(word)
	}

	return fw, nil
}

// ReadInfo parses the header of a firmware file without loading the
// instruction words.
func ReadInfo(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open firmware file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return readHeader(f)
}

func readHeader(r io.Reader) (*Info, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("truncated header: %w", ErrInvalidFirmware)
	}

	if string(header[0:7]) != Magic {
		return nil, fmt.Errorf("bad magic: %w", ErrInvalidFirmware)
	}

	info := &Info{
		Version:          binary.LittleEndian.Uint32(header[8:12]),
		InstructionCount: binary.LittleEndian.Uint32(header[12:16]),
		EntryPoint:       binary.LittleEndian.Uint64(header[16:24]),
		CreatedAt:        time.Unix(int64(binary.LittleEndian.Uint64(header[24:32])), 0),
		DescriptionSize:  binary.LittleEndian.Uint32(header[32:36]),
	}

	if info.Version != Version {
		return nil, fmt.Errorf("unsupported version %d: %w", info.Version, ErrInvalidFirmware)
	}
	if info.InstructionCount == 0 || info.InstructionCount > MaxInstructionCount {
		return nil, fmt.Errorf("instruction count %d out of range [1, %d]: %w",
			info.InstructionCount, MaxInstructionCount, ErrInvalidFirmware)
	}
	if info.DescriptionSize > MaxDescriptionSize {
		return nil, fmt.Errorf("description size %d exceeds %d: %w",
			info.DescriptionSize, MaxDescriptionSize, ErrInvalidFirmware)
	}

	return info, nil
}
