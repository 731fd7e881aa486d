// Package postgres reads the building plan from PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

var ErrRoomNotFound = domain.ErrRoomNotFound

const roomColumns = "roomid, roomlabel, roomname, roomtype, corridor, neighbourinside, neighbouroutside, direction"

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+roomColumns+" FROM room ORDER BY roomid")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (r *RoomRepository) GetRoom(ctx context.Context, id int) (domain.Room, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM room WHERE roomid = $1", id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, fmt.Errorf("%w: %d", ErrRoomNotFound, id)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %d: %w", id, err)
	}
	return room, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (domain.Room, error) {
	var (
		room                      domain.Room
		label, direction          sql.NullString
		corridor, inside, outside sql.NullInt64
	)
	if err := s.Scan(&room.ID, &label, &room.Name, &room.Type, &corridor, &inside, &outside, &direction); err != nil {
		return domain.Room{}, err
	}
	room.Label = label.String
	room.Direction = direction.String
	room.CorridorID = intPtr(corridor)
	room.NeighbourInsideID = intPtr(inside)
	room.NeighbourOutsideID = intPtr(outside)
	return room, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

var _ ports.RoomRepository = (*RoomRepository)(nil)
