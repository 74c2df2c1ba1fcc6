// Package tuner sizes the deduplicator's hashing pool from the detected
// CPU count and memory.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the free RAM in bytes. May be an estimate.
	AvailableRAM int64
}

const (
	maxHashWorkers = 32
	minHashWorkers = 2

	minBufferSize = 64 * 1024
	maxBufferSize = 4 * 1024 * 1024

	// bufferMemoryFraction is the share of available RAM all hash buffers
	// together may occupy.
	bufferMemoryFraction = 0.01
)

// Config is the tuned hashing configuration.
type Config struct {
	// HashWorkers is the number of files hashed concurrently.
	HashWorkers int

	// BufferSize is the read buffer each worker streams through.
	BufferSize int
}

// Calculate returns a Config for the given resources. Hashing is I/O bound,
// so workers are twice the core count, bounded to [2, 32].
func Calculate(resources SystemResources) Config {
	workers := resources.CPUCores * 2
	workers = max(workers, minHashWorkers)
	workers = min(workers, maxHashWorkers)

	buf := int(float64(resources.AvailableRAM) * bufferMemoryFraction / float64(workers))
	buf = max(buf, minBufferSize)
	buf = min(buf, maxBufferSize)

	return Config{HashWorkers: workers, BufferSize: buf}
}

// CalculateWithOverride applies a user worker override when positive.
func CalculateWithOverride(resources SystemResources, workers int) Config {
	cfg := Calculate(resources)
	if workers > 0 {
		cfg.HashWorkers = min(workers, maxHashWorkers)
	}
	return cfg
}

// Auto detects resources and returns the calculated Config, falling back
// to conservative defaults when detection fails.
func Auto(workers int) Config {
	res, err := Detect()
	if err != nil {
		res = SystemResources{CPUCores: minHashWorkers, AvailableRAM: defaultTotalRAM / 2}
	}
	return CalculateWithOverride(res, workers)
}
