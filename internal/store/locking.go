package store

import "gorm.io/gorm/clause"

// lockingClause applies SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// workers leasing batches never block on each other's candidate rows.
func lockingClause() clause.Expression {
	return clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
}
