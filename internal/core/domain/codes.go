package domain

import "fmt"

// Human-readable identifiers, monotonically assigned per year and immutable
// once set. The sequence number comes from a SequenceRepository.

func OrderCode(year, seq int) string {
	return fmt.Sprintf("ORD-%d-%06d", year, seq)
}

func TicketCode(year, seq int) string {
	return fmt.Sprintf("TKT-%d-%08d", year, seq)
}
