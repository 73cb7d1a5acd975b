package payment

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTransactionID returns the last six digits of the current unix millisecond clock
// followed by ten random base-36 characters.
func NewTransactionID() string {
	return transactionID(time.Now(), rand.IntN)
}

func transactionID(now time.Time, intn func(int) int) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	b := make([]byte, 10)
	for i := range b {
		b[i] = base36[intn(len(base36))]
	}
	return millis + string(b)
}
