package scheduler

import (
	"encoding/binary"

	"github.com/zplc/zplc-core/hal"
)

// IOKind identifies which HAL capability an IOMapping entry binds a
// process-image offset to.
type IOKind uint8

const (
	IOGPIOInput IOKind = iota
	IOGPIOOutput
	IOADCInput
	IODACOutput
)

// IOMapping binds one HAL channel to a fixed byte offset of the input or
// output process image: GPIO mappings occupy 1 byte (0x00/0x01), ADC/DAC
// mappings occupy 2 bytes (little-endian u16). Input kinds (IOGPIOInput,
// IOADCInput) address IPI; output kinds (IOGPIOOutput, IODACOutput)
// address OPI.
type IOMapping struct {
	Kind    IOKind
	Channel int
	Offset  int
}

func (m IOMapping) width() int {
	switch m.Kind {
	case IOADCInput, IODACOutput:
		return 2
	default:
		return 1
	}
}

// latchInputs performs spec.md's scan step 2: for each configured input
// mapping, read the HAL channel and copy the value into IPI. A failed
// read zeroes the mapping's IPI bytes and the scan continues, per the
// error-handling rule that an input-latch failure must never abort a
// scan.
func (s *Scheduler) latchInputs() {
	if s.HAL == nil {
		return
	}
	for _, m := range s.IOMap {
		switch m.Kind {
		case IOGPIOInput:
			v, res := s.HAL.GPIORead(m.Channel)
			if res != hal.OK {
				s.Mem.ZeroIPI(m.Offset, m.width())
				continue
			}
			b := byte(0)
			if v {
				b = 1
			}
			_ = s.Mem.WriteIPIRaw(m.Offset, []byte{b})
		case IOADCInput:
			v, res := s.HAL.ADCRead(m.Channel)
			if res != hal.OK {
				s.Mem.ZeroIPI(m.Offset, m.width())
				continue
			}
			buf := make([]byte, 2)
			binary.LittleEndian.PutUint16(buf, v)
			_ = s.Mem.WriteIPIRaw(m.Offset, buf)
		}
	}
}

// latchOutputs performs spec.md's scan step 5: for each configured output
// mapping, read the mapping's OPI bytes and write them to the HAL
// channel. A failed write is logged and the scan completes regardless.
func (s *Scheduler) latchOutputs() {
	if s.HAL == nil {
		return
	}
	for _, m := range s.IOMap {
		data, err := s.Mem.ReadOPIRaw(m.Offset, m.width())
		if err != nil {
			continue
		}
		switch m.Kind {
		case IOGPIOOutput:
			res := s.HAL.GPIOWrite(m.Channel, data[0] != 0)
			if res != hal.OK {
				s.HAL.Log(hal.LogWarn, "output latch: gpio write failed", map[string]any{
					"channel": m.Channel, "offset": m.Offset, "result": res.String(),
				})
			}
		case IODACOutput:
			res := s.HAL.DACWrite(m.Channel, binary.LittleEndian.Uint16(data))
			if res != hal.OK {
				s.HAL.Log(hal.LogWarn, "output latch: dac write failed", map[string]any{
					"channel": m.Channel, "offset": m.Offset, "result": res.String(),
				})
			}
		}
	}
}
