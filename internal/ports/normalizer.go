package ports

import "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"

type Normalizer interface {
	Normalize(msg domain.RawMessage) (domain.Reading, error)
}

// ReadingListener observes every accepted reading. It must not block.
type ReadingListener interface {
	OnReading(r domain.Reading)
}
