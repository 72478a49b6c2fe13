package model

import "github.com/ioxiocom/firedantic/store"

// opSettings collects the per-operation options. Each operation reads the
// settings that apply to it and ignores the rest.
type opSettings struct {
	tx        *Tx
	omitZero  bool
	orders    []store.Order
	limit     *int
	offset    int
	batchSize int
}

func applyOptions(opts []Option) *opSettings {
	s := &opSettings{batchSize: defaultTruncateBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option customizes a single model operation.
type Option func(*opSettings)

// WithTx routes the operation through an open transaction instead of
// issuing an independent store request.
func WithTx(tx *Tx) Option {
	return func(s *opSettings) { s.tx = tx }
}

// OmitZero makes Save leave out fields holding their zero value, mirroring
// partial-document semantics. Fields tagged `,omitempty` are always left
// out when zero, with or without this option.
func OmitZero() Option {
	return func(s *opSettings) { s.omitZero = true }
}

// OrderBy appends a sort key. Repeated uses build a stable multi-key sort
// applied in sequence.
func OrderBy(field string, direction store.Direction) Option {
	return func(s *opSettings) {
		s.orders = append(s.orders, store.Order{Field: field, Direction: direction})
	}
}

// WithLimit caps the number of results. Zero is a valid limit.
func WithLimit(limit int) Option {
	return func(s *opSettings) {
		l := limit
		s.limit = &l
	}
}

// WithOffset skips the first offset results under the effective order.
func WithOffset(offset int) Option {
	return func(s *opSettings) { s.offset = offset }
}

// WithBatchSize sets the enumeration batch size used by
// TruncateCollection. The default is 128.
func WithBatchSize(size int) Option {
	return func(s *opSettings) {
		if size > 0 {
			s.batchSize = size
		}
	}
}
