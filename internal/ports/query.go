package ports

import (
	"context"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

// QueryExecutor runs a query-language statement and returns the raw tabular text.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string) (string, error)
}

type RoomRepository interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetRoom(ctx context.Context, id int) (domain.Room, error)
}
