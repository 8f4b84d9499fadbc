package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/civitas-platform/identity-service/internal/domain"
)

func TestNotificationRepo_Create(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewNotificationRepo(db)

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("u1", "signin", "New sign-in to your account").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), "u1", "signin", "New sign-in to your account"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationRepo_Create_Validation(t *testing.T) {
	t.Parallel()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewNotificationRepo(db)

	if err := repo.Create(context.Background(), "", "signin", "x"); !domain.Is(err, "missing_field") {
		t.Fatalf("empty user: %v", err)
	}
	if err := repo.Create(context.Background(), "u1", "", "x"); !domain.Is(err, "missing_field") {
		t.Fatalf("empty kind: %v", err)
	}
}

func TestNotificationRepo_Create_DBError(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewNotificationRepo(db)

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(errors.New("connection refused"))

	if err := repo.Create(context.Background(), "u1", "signin", "x"); !domain.Is(err, "db_unavailable") {
		t.Fatalf("got %v", err)
	}
}
