package cpu

// 8-bit flag ALU. Each helper returns the result and sets F directly,
// following the documented Z80/SM83 rules (spec.md §4.1 "Flag ALU").

func (c *CPU) add8(a, b byte) byte {
	r := uint16(a) + uint16(b)
	res := byte(r)
	c.setZNHC(res == 0, false, (a&0x0F)+(b&0x0F) > 0x0F, r > 0xFF)
	return res
}

func (c *CPU) adc8(a, b byte) byte {
	ci := byte(0)
	if c.Cf() {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res := byte(r)
	c.setZNHC(res == 0, false, (a&0x0F)+(b&0x0F)+ci > 0x0F, r > 0xFF)
	return res
}

func (c *CPU) sub8(a, b byte) byte {
	r := int16(a) - int16(b)
	res := byte(r)
	c.setZNHC(res == 0, true, (a&0x0F) < (b&0x0F), int16(a) < int16(b))
	return res
}

func (c *CPU) sbc8(a, b byte) byte {
	ci := byte(0)
	if c.Cf() {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res := byte(r)
	c.setZNHC(res == 0, true, (a&0x0F) < (b&0x0F)+ci, int16(a) < int16(b)+int16(ci))
	return res
}

func (c *CPU) and8(a, b byte) byte {
	res := a & b
	c.setZNHC(res == 0, false, true, false)
	return res
}

func (c *CPU) xor8(a, b byte) byte {
	res := a ^ b
	c.setZNHC(res == 0, false, false, false)
	return res
}

func (c *CPU) or8(a, b byte) byte {
	res := a | b
	c.setZNHC(res == 0, false, false, false)
	return res
}

func (c *CPU) cp8(a, b byte) {
	c.sub8(a, b)
}

// aluOp applies ALU[y] to A and operand, per the x=2/x=3,z=6 opcode groups.
func (c *CPU) aluOp(y byte, operand byte) {
	switch y {
	case 0:
		c.A = c.add8(c.A, operand)
	case 1:
		c.A = c.adc8(c.A, operand)
	case 2:
		c.A = c.sub8(c.A, operand)
	case 3:
		c.A = c.sbc8(c.A, operand)
	case 4:
		c.A = c.and8(c.A, operand)
	case 5:
		c.A = c.xor8(c.A, operand)
	case 6:
		c.A = c.or8(c.A, operand)
	case 7:
		c.cp8(c.A, operand)
	}
}

// inc8/dec8 do not affect the carry flag.
func (c *CPU) inc8(v byte) byte {
	res := v + 1
	c.setFlag(flagZ, res == 0)
	c.setFlag(flagN, false)
	c.setFlag(flagH, v&0x0F == 0x0F)
	return res
}

func (c *CPU) dec8(v byte) byte {
	res := v - 1
	c.setFlag(flagZ, res == 0)
	c.setFlag(flagN, true)
	c.setFlag(flagH, v&0x0F == 0)
	return res
}

// addHL16 implements ADD HL,rr: N cleared, half-carry out of bit 11, carry
// out of bit 15. Z is unaffected.
func (c *CPU) addHL16(a, b uint16) uint16 {
	r := uint32(a) + uint32(b)
	c.setFlag(flagN, false)
	c.setFlag(flagH, (a&0x0FFF)+(b&0x0FFF) > 0x0FFF)
	c.setFlag(flagC, r > 0xFFFF)
	return uint16(r)
}

// addSPSigned implements both ADD SP,e and LD HL,SP+e: flags derived from
// the low byte as an 8-bit add, Z and N always cleared.
func (c *CPU) addSPSigned(sp uint16, e int8) uint16 {
	se := uint16(int16(e))
	r := uint32(sp) + uint32(se)
	c.setFlag(flagZ, false)
	c.setFlag(flagN, false)
	c.setFlag(flagH, (sp&0x0F)+(se&0x0F) > 0x0F)
	c.setFlag(flagC, (sp&0xFF)+(se&0xFF) > 0xFF)
	return uint16(r)
}

func (c *CPU) daa() {
	a := c.A
	cf := c.Cf()
	hf := c.Hf()
	if !c.Nf() { // after addition
		if cf || a > 0x99 {
			a += 0x60
			cf = true
		}
		if hf || (a&0x0F) > 0x09 {
			a += 0x06
		}
	} else { // after subtraction
		if cf {
			a -= 0x60
		}
		if hf {
			a -= 0x06
		}
	}
	c.A = a
	c.setFlag(flagZ, a == 0)
	c.setFlag(flagH, false)
	c.setFlag(flagC, cf)
}

func (c *CPU) cpl() {
	c.A = ^c.A
	c.setFlag(flagN, true)
	c.setFlag(flagH, true)
}

func (c *CPU) scf() {
	c.setFlag(flagN, false)
	c.setFlag(flagH, false)
	c.setFlag(flagC, true)
}

func (c *CPU) ccf() {
	c.setFlag(flagN, false)
	c.setFlag(flagH, false)
	c.setFlag(flagC, !c.Cf())
}

// rlca/rrca/rla/rra operate on A and always clear Z (spec.md §4.1).
func (c *CPU) rlca() {
	cy := (c.A >> 7) & 1
	c.A = (c.A << 1) | cy
	c.setZNHC(false, false, false, cy == 1)
}

func (c *CPU) rrca() {
	cy := c.A & 1
	c.A = (c.A >> 1) | (cy << 7)
	c.setZNHC(false, false, false, cy == 1)
}

func (c *CPU) rla() {
	cy := (c.A >> 7) & 1
	cin := byte(0)
	if c.Cf() {
		cin = 1
	}
	c.A = (c.A << 1) | cin
	c.setZNHC(false, false, false, cy == 1)
}

func (c *CPU) rra() {
	cy := c.A & 1
	cin := byte(0)
	if c.Cf() {
		cin = 1
	}
	c.A = (c.A >> 1) | (cin << 7)
	c.setZNHC(false, false, false, cy == 1)
}

// CB-prefixed rotate/shift/swap group, operating on an arbitrary 8-bit value.
func (c *CPU) rlc(v byte) byte {
	cy := (v >> 7) & 1
	res := (v << 1) | cy
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) rrc(v byte) byte {
	cy := v & 1
	res := (v >> 1) | (cy << 7)
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) rl(v byte) byte {
	cy := (v >> 7) & 1
	cin := byte(0)
	if c.Cf() {
		cin = 1
	}
	res := (v << 1) | cin
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) rr(v byte) byte {
	cy := v & 1
	cin := byte(0)
	if c.Cf() {
		cin = 1
	}
	res := (v >> 1) | (cin << 7)
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) sla(v byte) byte {
	cy := (v >> 7) & 1
	res := v << 1
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) sra(v byte) byte {
	cy := v & 1
	res := (v >> 1) | (v & 0x80)
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) swap(v byte) byte {
	res := (v << 4) | (v >> 4)
	c.setZNHC(res == 0, false, false, false)
	return res
}

func (c *CPU) srl(v byte) byte {
	cy := v & 1
	res := v >> 1
	c.setZNHC(res == 0, false, false, cy == 1)
	return res
}

func (c *CPU) bit(y, v byte) {
	c.setFlag(flagZ, (v>>y)&1 == 0)
	c.setFlag(flagN, false)
	c.setFlag(flagH, true)
}

func (c *CPU) res(y, v byte) byte { return v &^ (1 << y) }
func (c *CPU) set(y, v byte) byte { return v | (1 << y) }
