package permission

// Mask is a set of permission bits.
type Mask uint64

const maskBits = 64

func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= maskBits {
		return false
	}
	return m&(1<<bit) != 0
}

func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= maskBits {
		return
	}
	*m |= 1 << bit
}

func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= maskBits {
		return
	}
	*m &^= 1 << bit
}

func (m Mask) Raw() uint64 {
	return uint64(m)
}
