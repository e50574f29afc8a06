package cpu

// cbFetchAndExecute is the Standard step that reads the CB-suffix opcode
// byte. Register-operand CB instructions complete within this same step (no
// further bus access is needed, matching the real 8-cycle total of
// fetch+cbFetch). (HL)-operand forms queue the extra read/write Standard
// steps that give them their real 12/16-cycle totals.
func cbFetchAndExecute(c *CPU) {
	cbop := c.bus.Read(c.PC)
	c.PC++

	x := cbop >> 6
	y := (cbop >> 3) & 7
	z := cbop & 7

	if z != 6 {
		v := c.getReg8(z)
		c.setReg8(z, c.applyCB(x, y, v))
		return
	}

	switch x {
	case 1: // BIT y,(HL): read only
		c.queue = []step{std(func(c *CPU) { c.bit(y, c.bus.Read(c.HL())) })}
	default: // rot/shift/SWAP, RES, SET on (HL): read-modify-write
		c.queue = []step{
			std(func(c *CPU) { c.temp8 = c.bus.Read(c.HL()) }),
			std(func(c *CPU) { c.bus.Write(c.HL(), c.applyCB(x, y, c.temp8)) }),
		}
	}
	c.qi = 0
}

// applyCB dispatches the CB-table x group (rotate/shift/swap, BIT, RES, SET)
// to a plain value, for use on both register operands (inline) and (HL)
// operands (via the read/write steps above). For BIT the return value is
// unused by callers that only care about the flag side effect.
func (c *CPU) applyCB(x, y, v byte) byte {
	if x == 0 {
		switch y {
		case 0:
			return c.rlc(v)
		case 1:
			return c.rrc(v)
		case 2:
			return c.rl(v)
		case 3:
			return c.rr(v)
		case 4:
			return c.sla(v)
		case 5:
			return c.sra(v)
		case 6:
			return c.swap(v)
		default:
			return c.srl(v)
		}
	}
	if x == 1 {
		c.bit(y, v)
		return v
	}
	if x == 2 {
		return c.res(y, v)
	}
	return c.set(y, v)
}
