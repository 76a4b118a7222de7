package entity

// Principal is the caller identity resolved by the identity layer outside
// this core. Admin callers see and may delete every record.
type Principal struct {
	ID    string
	Admin bool
}
