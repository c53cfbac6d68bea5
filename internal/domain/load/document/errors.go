package document

import "errors"

// ErrBulkPartial marks a bulk upsert where some documents were rejected.
var ErrBulkPartial = errors.New("bulk upsert partially failed")
