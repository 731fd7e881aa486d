package ports

import "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"

type ReadingQueue interface {
	Enqueue(r domain.Reading) bool
	DequeueBatch(max int) []domain.Reading
	Len() int
}
