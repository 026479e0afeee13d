package euxfel

// StackOption configures StackData and StackDetectorData.
type StackOption func(*stackOptions)

type stackOptions struct {
	axis    int
	modules int
	only    string
	exclude map[string]bool
	noData  *int64
}

func defaultStackOptions() *stackOptions {
	return &stackOptions{
		axis:    -3,
		modules: 16,
	}
}

// WithAxis sets the output axis the stacked device dimension is moved to.
// Negative values count from the end, Python-style. The default is -3.
func WithAxis(axis int) StackOption {
	return func(o *stackOptions) {
		o.axis = axis
	}
}

// WithModules sets the number of modules composing a detector (default 16).
// Only StackDetectorData uses it.
func WithModules(n int) StackOption {
	return func(o *stackOptions) {
		if n > 0 {
			o.modules = n
		}
	}
}

// WithOnly restricts StackDetectorData to devices whose name contains the
// given substring.
func WithOnly(substr string) StackOption {
	return func(o *stackOptions) {
		o.only = substr
	}
}

// WithExclude skips the named devices (useful when slow data was recorded
// alongside detector data in the same run). May be given multiple times.
func WithExclude(devices ...string) StackOption {
	return func(o *stackOptions) {
		if o.exclude == nil {
			o.exclude = make(map[string]bool)
		}
		for _, dev := range devices {
			o.exclude[dev] = true
		}
	}
}

// WithNoDataValue sets the placeholder for missing modules when the stacked
// dtype is an integer type, where NaN is undefined. The default is the
// dtype's maximum value. Floating dtypes always use NaN.
func WithNoDataValue(v int64) StackOption {
	return func(o *stackOptions) {
		o.noData = &v
	}
}
