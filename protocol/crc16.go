package protocol

// CRC16 computes the CCITT checksum carried in every frame trailer
// (initial value 0xFFFF, reflected byte-wise update)
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ byte(crc)
		x ^= x << 4
		w := uint16(x)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}
