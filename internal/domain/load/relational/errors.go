package relational

import "errors"

// ErrLoad wraps every failure of the relational load; the transaction has
// been rolled back when it is returned.
var ErrLoad = errors.New("relational load failed")
