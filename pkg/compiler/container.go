package compiler

import (
	"encoding/binary"
	"os"
)

// containerMagic is the fixed 4-byte magic "V4BC".
var containerMagic = [4]byte{'V', '4', 'B', 'C'}

const (
	containerHeaderSize  = 16
	containerMajor       = 0
	containerMinor       = 1
	containerFlagsExpect = 0
)

// SaveBytecode writes out.Main to path under the fixed 16-byte container
// header. Word definitions are not persisted; the container holds only
// the main bytecode.
func SaveBytecode(out *Output, path string) error {
	header := make([]byte, containerHeaderSize)
	copy(header[0:4], containerMagic[:])
	header[4] = containerMajor
	header[5] = containerMinor
	binary.LittleEndian.PutUint16(header[6:8], containerFlagsExpect)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(out.Main)))
	binary.LittleEndian.PutUint32(header[12:16], 0)

	f, err := os.Create(path)
	if err != nil {
		return newErr(ErrContainerOpenFailed)
	}
	defer f.Close()

	if _, err := f.Write(header); err != nil {
		return newErr(ErrContainerWriteFailed)
	}
	if _, err := f.Write(out.Main); err != nil {
		return newErr(ErrContainerWriteFailed)
	}
	return nil
}

// LoadBytecode reads a container written by SaveBytecode. The major/minor
// version and the reserved field are read but accepted permissively: only
// the magic is validated. A future writer can bump the minor version
// without breaking this reader, since no currently-defined flag changes
// the byte layout below the header.
func LoadBytecode(path string) (*Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(ErrContainerOpenFailed)
	}
	if len(data) < containerHeaderSize {
		return nil, newErr(ErrContainerReadFailed)
	}
	if string(data[0:4]) != string(containerMagic[:]) {
		return nil, newErr(ErrContainerBadMagic)
	}
	codeSize := binary.LittleEndian.Uint32(data[8:12])
	if containerHeaderSize+int(codeSize) > len(data) {
		return nil, newErr(ErrContainerReadFailed)
	}
	main := make([]byte, codeSize)
	copy(main, data[containerHeaderSize:containerHeaderSize+int(codeSize)])
	return &Output{Main: main}, nil
}
