package main

var (
	randTable1 = [...]uint16{
		26300, 12613, 26904, 8022, 30794, 31703, 25650, 2068, 26336, 26781,
		16264, 19980, 15295, 31750, 3123, 32465, 4086, 14700, 31978,
	}
	randTable2 = [...]uint16{
		29646, 3873, 6645, 27385, 11518, 9321, 2002, 31546, 5100, 12871,
		15150, 10975, 23235, 16316, 10161, 745, 27271, 26236, 7635, 9953,
		15108, 30539, 16157, 16197, 20820, 21735, 24581, 14531, 21504, 21949,
		27284,
	}
)

// randState is a small table driven generator producing values in
// [0, 32768); the two tables have coprime lengths, so the pair of indices
// cycles through every combination.
type randState struct {
	value int16
	i, j  int
}

func (rs *randState) next() int16 {
	v := uint16(rs.value) << 1
	if v&0x8000 != 0 {
		v = v&0x7fff | 1
	}
	v ^= randTable1[rs.i] ^ randTable2[rs.j]
	rs.i = (rs.i + 1) % len(randTable1)
	rs.j = (rs.j + 1) % len(randTable2)
	rs.value = int16(v & 0x7fff)
	return rs.value
}
