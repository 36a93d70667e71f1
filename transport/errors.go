package transport

import "errors"

// ErrMemory is returned when the allocator cannot satisfy a request. The
// triggering operation aborts without partial mutation of queue or session
// state.
var ErrMemory = errors.New("transport: out of memory")

// ErrInvalidArgument is returned for transfers that cannot be represented
// on the wire: out-of-range port-ID, service transfers without concrete
// node-IDs, or multi-frame anonymous transfers.
var ErrInvalidArgument = errors.New("transport: invalid argument")
