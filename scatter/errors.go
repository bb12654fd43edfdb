package scatter

import "errors"

var (
	// ErrUnsupportedBackend reports that the compute or shading backend cannot
	// run on this host. The compositor degrades to a pass-through.
	ErrUnsupportedBackend = errors.New("scatter: unsupported backend")

	// ErrMissingSun reports that no sun provider was configured.
	ErrMissingSun = errors.New("scatter: no sun configured")

	// ErrInvalidParameters reports an out-of-range scattering parameter.
	ErrInvalidParameters = errors.New("scatter: invalid parameters")

	// ErrNotActive reports a frame call on a compositor that is not active.
	ErrNotActive = errors.New("scatter: not active")

	// ErrFrameOrder reports a composite issued before the frame began.
	ErrFrameOrder = errors.New("scatter: frame not begun")

	// ErrSize reports a table or surface with unexpected dimensions.
	ErrSize = errors.New("scatter: size mismatch")
)
