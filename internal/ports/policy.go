package ports

import "time"

type Policy struct {
	Mode         string        `yaml:"mode"` // "direct", "queued"
	MaxQueueLen  int           `yaml:"max_queue_len"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	OnQueueFull string `yaml:"on_queue_full"` // "block", "drop"
}
