package medication

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CodePrefix    = "EZ"
	codeLength    = 6
	maxCodeChecks = 10
)

// GenerateDatedShortCode renders <prefix>-<yyMMdd>-<XXXXXX> where the suffix
// is the leading base36 digits of a random UUID, upper-cased.
func GenerateDatedShortCode(prefix string, now time.Time) string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	short := strings.ToUpper(n.Text(36))
	for len(short) < codeLength {
		short = "0" + short
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("060102"), short[:codeLength])
}
