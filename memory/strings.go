package memory

// String layout: a 4-byte header (current_length u16, max_capacity u16)
// followed by max_capacity+1 bytes of null-terminated data. Every
// operation here is a straight-line bounds-checked routine over that
// layout; none use an unchecked copy even where the caller provably stays
// within capacity, per the spec's string design note.

const stringHeaderSize = 4

func (m *Memory) stringHeader(addr int) (length, capacity int, err error) {
	lenWord, err := m.ReadU16(addr)
	if err != nil {
		return 0, 0, err
	}
	capWord, err := m.ReadU16(addr + 2)
	if err != nil {
		return 0, 0, err
	}
	return int(lenWord), int(capWord), nil
}

func (m *Memory) setStringHeader(addr, length, capacity int) error {
	if err := m.WriteU16(addr, uint16(length)); err != nil {
		return err
	}
	return m.WriteU16(addr+2, uint16(capacity))
}

// StrLen returns the current_length field of the string at addr.
func (m *Memory) StrLen(addr int) (int, error) {
	length, _, err := m.stringHeader(addr)
	return length, err
}

// StrClr sets current_length to zero and writes a null terminator at the
// start of the data area.
func (m *Memory) StrClr(addr int) error {
	_, capacity, err := m.stringHeader(addr)
	if err != nil {
		return err
	}
	if err := m.setStringHeader(addr, 0, capacity); err != nil {
		return err
	}
	return m.WriteU8(addr+stringHeaderSize, 0)
}

// StrCpy copies the string at src into dst, truncating to dst's
// max_capacity and always null-terminating.
func (m *Memory) StrCpy(dst, src int) error {
	srcLen, _, err := m.stringHeader(src)
	if err != nil {
		return err
	}
	_, dstCap, err := m.stringHeader(dst)
	if err != nil {
		return err
	}

	n := srcLen
	if n > dstCap {
		n = dstCap
	}
	for i := 0; i < n; i++ {
		b, err := m.ReadU8(src + stringHeaderSize + i)
		if err != nil {
			return err
		}
		if err := m.WriteU8(dst+stringHeaderSize+i, b); err != nil {
			return err
		}
	}
	if err := m.WriteU8(dst+stringHeaderSize+n, 0); err != nil {
		return err
	}
	return m.setStringHeader(dst, n, dstCap)
}

// StrCat appends the string at src onto dst, truncating to dst's
// remaining max_capacity and always null-terminating.
func (m *Memory) StrCat(dst, src int) error {
	dstLen, dstCap, err := m.stringHeader(dst)
	if err != nil {
		return err
	}
	srcLen, _, err := m.stringHeader(src)
	if err != nil {
		return err
	}

	room := dstCap - dstLen
	if room < 0 {
		room = 0
	}
	n := srcLen
	if n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		b, err := m.ReadU8(src + stringHeaderSize + i)
		if err != nil {
			return err
		}
		if err := m.WriteU8(dst+stringHeaderSize+dstLen+i, b); err != nil {
			return err
		}
	}
	newLen := dstLen + n
	if err := m.WriteU8(dst+stringHeaderSize+newLen, 0); err != nil {
		return err
	}
	return m.setStringHeader(dst, newLen, dstCap)
}

// StrCmp performs a byte-wise comparison of the two strings' current
// contents, returning -1, 0, or 1.
func (m *Memory) StrCmp(a, b int) (int, error) {
	aLen, _, err := m.stringHeader(a)
	if err != nil {
		return 0, err
	}
	bLen, _, err := m.stringHeader(b)
	if err != nil {
		return 0, err
	}

	n := aLen
	if bLen < n {
		n = bLen
	}
	for i := 0; i < n; i++ {
		ab, err := m.ReadU8(a + stringHeaderSize + i)
		if err != nil {
			return 0, err
		}
		bb, err := m.ReadU8(b + stringHeaderSize + i)
		if err != nil {
			return 0, err
		}
		if ab != bb {
			if ab < bb {
				return -1, nil
			}
			return 1, nil
		}
	}
	switch {
	case aLen < bLen:
		return -1, nil
	case aLen > bLen:
		return 1, nil
	default:
		return 0, nil
	}
}

// InitString writes a fresh header and empty data area, for callers (such
// as tests) that set up a string variable with an initial value.
func (m *Memory) InitString(addr int, capacity int, initial string) error {
	if err := m.setStringHeader(addr, 0, capacity); err != nil {
		return err
	}
	if err := m.WriteU8(addr+stringHeaderSize, 0); err != nil {
		return err
	}
	if initial == "" {
		return nil
	}
	n := len(initial)
	if n > capacity {
		n = capacity
	}
	for i := 0; i < n; i++ {
		if err := m.WriteU8(addr+stringHeaderSize+i, initial[i]); err != nil {
			return err
		}
	}
	if err := m.WriteU8(addr+stringHeaderSize+n, 0); err != nil {
		return err
	}
	return m.setStringHeader(addr, n, capacity)
}
