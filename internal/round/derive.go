package round

import "github.com/google/uuid"

// Transaction legs of a round. The leg name is the only input besides
// the round id, so the same round always maps to the same pair of
// wallet transaction ids.
const (
	LegDebit  = "debit"
	LegCredit = "credit"
)

// DeriveTransactionID maps a round id and leg to a stable wallet
// transaction id. UUIDv5 in the round id's namespace: any retry of the
// same leg presents the same id, which is what lets the wallet
// deduplicate.
func DeriveTransactionID(roundID uuid.UUID, leg string) string {
	return uuid.NewSHA1(roundID, []byte(leg)).String()
}
