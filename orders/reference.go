package orders

import (
	"fmt"
	"regexp"
	"time"
)

const referenceModulus = 100_000_000

var referencePattern = regexp.MustCompile(`^LX\d{8}$`)

// GenerateReference returns "LX" followed by the last eight digits of the current
// epoch milliseconds. References are not unique across clients.
func GenerateReference() string {
	return ReferenceAt(time.Now())
}

func ReferenceAt(t time.Time) string {
	return fmt.Sprintf("LX%08d", t.UnixMilli()%referenceModulus)
}

func IsReference(s string) bool {
	return referencePattern.MatchString(s)
}
