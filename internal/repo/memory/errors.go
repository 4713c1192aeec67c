package memory

import "errors"

var errDuplicateKey = errors.New("duplicate key")
