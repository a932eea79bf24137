package service

import "encoding/binary"

// Symbol table and debug map wire formats. The loader treats both
// segments as opaque blobs (spec.md leaves their contents to the
// debugger); this is the one format this project's toolchain and
// debugger agree on.
//
// Symbol table: repeated entries of
//   address u16, name_len u8, name [name_len]byte
//
// Debug map: repeated entries of
//   address u16, line_len u16, line [line_len]byte
//
// Both decoders stop at the first entry that would run past the end of
// the blob rather than fail the whole load over a truncated debug aid.

func decodeSymbolTable(blob []byte) map[string]uint16 {
	out := make(map[string]uint16)
	off := 0
	for off+3 <= len(blob) {
		addr := binary.LittleEndian.Uint16(blob[off:])
		nameLen := int(blob[off+2])
		off += 3
		if off+nameLen > len(blob) {
			break
		}
		name := string(blob[off : off+nameLen])
		out[name] = addr
		off += nameLen
	}
	return out
}

func decodeDebugMap(blob []byte) map[uint16]string {
	out := make(map[uint16]string)
	off := 0
	for off+4 <= len(blob) {
		addr := binary.LittleEndian.Uint16(blob[off:])
		lineLen := int(binary.LittleEndian.Uint16(blob[off+2:]))
		off += 4
		if off+lineLen > len(blob) {
			break
		}
		out[addr] = string(blob[off : off+lineLen])
		off += lineLen
	}
	return out
}

// EncodeSymbolTable produces the wire format decodeSymbolTable parses,
// for tooling (and tests) that build a debug-enabled artifact.
func EncodeSymbolTable(symbols map[string]uint16) []byte {
	var out []byte
	for name, addr := range symbols {
		if len(name) > 255 {
			name = name[:255]
		}
		entry := make([]byte, 3+len(name))
		binary.LittleEndian.PutUint16(entry[0:2], addr)
		entry[2] = byte(len(name))
		copy(entry[3:], name)
		out = append(out, entry...)
	}
	return out
}

// EncodeDebugMap produces the wire format decodeDebugMap parses.
func EncodeDebugMap(lines map[uint16]string) []byte {
	var out []byte
	for addr, line := range lines {
		entry := make([]byte, 4+len(line))
		binary.LittleEndian.PutUint16(entry[0:2], addr)
		binary.LittleEndian.PutUint16(entry[2:4], uint16(len(line)))
		copy(entry[4:], line)
		out = append(out, entry...)
	}
	return out
}
