package types

// Destroyer is the contract between a control block and the payload it owns.
type Destroyer interface {

	/*
		Destroy is called exactly once, when the last owner releases the block.
		1. Last handle releases -> reference count reaches zero
		2. Block swaps its payload pointer to nil
		3. Block calls Destroy on the payload it just detached

		Expiry plays no part here: an expired payload is still destroyed only
		when its count reaches zero.
	*/
	Destroy()
}
