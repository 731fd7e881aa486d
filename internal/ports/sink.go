package ports

import (
	"context"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

type Sink interface {
	WriteBatch(ctx context.Context, readings []domain.Reading) error
	Name() string
}
