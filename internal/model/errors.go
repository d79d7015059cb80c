package model

import "errors"

// ErrUnparseablePayload marks backend calendar payloads that do not match
// the expected shape. It is never retried: the same request yields the
// same payload.
var ErrUnparseablePayload = errors.New("unparseable calendar payload")
