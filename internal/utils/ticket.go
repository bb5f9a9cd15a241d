package utils

import (
	"crypto/rand"
	"fmt"
)

// ticketAlphabet is the character set used for ticket codes.  It avoids
// 0/O and 1/I so codes survive being read over a radio or typed from a
// printed ticket.
const ticketAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ticketCodeLen is the number of random characters after the prefix.
const ticketCodeLen = 10

// NewTicketCode generates a fresh ticket code of the form
// TKT-XXXXXXXXXX.  The code is random rather than sequential so that a
// ticket cannot be guessed from a neighbouring one; the sessions table
// enforces uniqueness with a unique index, and callers retry on the
// astronomically unlikely collision.
func NewTicketCode() (string, error) {
	buf := make([]byte, ticketCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = ticketAlphabet[int(b)%len(ticketAlphabet)]
	}
	return fmt.Sprintf("TKT-%s", buf), nil
}
