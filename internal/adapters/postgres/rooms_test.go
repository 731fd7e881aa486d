package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var cols = []string{"roomid", "roomlabel", "roomname", "roomtype", "corridor", "neighbourinside", "neighbouroutside", "direction"}

func TestListRooms(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + roomColumns + " FROM room ORDER BY roomid")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "E01", "Corridor EG", "corridor", nil, nil, nil, nil).
			AddRow(8, "U08", "Classroom", "classroom", 1, 7, nil, "north"))

	rooms, err := NewRoomRepository(db).ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].CorridorID != nil || rooms[0].Direction != "" {
		t.Fatalf("expected nullable columns to stay empty, got %+v", rooms[0])
	}
	r := rooms[1]
	if r.ID != 8 || r.Label != "U08" || r.Type != "classroom" || r.Direction != "north" {
		t.Fatalf("unexpected room %+v", r)
	}
	if r.CorridorID == nil || *r.CorridorID != 1 || r.NeighbourInsideID == nil || *r.NeighbourInsideID != 7 || r.NeighbourOutsideID != nil {
		t.Fatalf("unexpected neighbours %+v", r)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRoomsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM room").WillReturnRows(sqlmock.NewRows(cols))
	rooms, err := NewRoomRepository(db).ListRooms(context.Background())
	if err != nil || rooms == nil || len(rooms) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", rooms, err)
	}
}

func TestGetRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM room WHERE roomid = $1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(8, nil, "Classroom", "classroom", nil, nil, 9, "south"))

	room, err := NewRoomRepository(db).GetRoom(context.Background(), 8)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.ID != 8 || room.Label != "" || room.NeighbourOutsideID == nil || *room.NeighbourOutsideID != 9 {
		t.Fatalf("unexpected room %+v", room)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM room WHERE").WithArgs(99).WillReturnRows(sqlmock.NewRows(cols))

	if _, err := NewRoomRepository(db).GetRoom(context.Background(), 99); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestListRoomsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation \"room\" does not exist"))
	if _, err := NewRoomRepository(db).ListRooms(context.Background()); err == nil {
		t.Fatalf("expected query error")
	}
}
