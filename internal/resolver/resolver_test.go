package resolver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestResolveListingCreatesNewComplex(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id FROM complexes WHERE external_listing_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cx-new"))

	id, err := ResolveListing(context.Background(), db, "art-1", ListingComplexFields{
		Name:     "신규 단지",
		Province: "서울특별시",
		District: "서초구",
	})
	if err != nil {
		t.Fatalf("ResolveListing: %v", err)
	}
	if id != "cx-new" {
		t.Fatalf("got id %q, want cx-new", id)
	}
}

func TestResolveListingRefreshesExisting(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id FROM complexes WHERE external_listing_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cx-1"))
	mock.ExpectExec("UPDATE complexes SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := ResolveListing(context.Background(), db, "art-1", ListingComplexFields{Name: "무시됨"})
	if err != nil {
		t.Fatalf("ResolveListing: %v", err)
	}
	if id != "cx-1" {
		t.Fatalf("got id %q, want cx-1", id)
	}
}

func TestResolveTransactionMatchesExistingCandidate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name FROM complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("cx-1", "래미안 강남(1차)"))

	r := New()
	id, created, err := r.ResolveTransaction(context.Background(), db, "래미안 강남", "서울특별시", "강남구", "역삼동", nil)
	if err != nil {
		t.Fatalf("ResolveTransaction: %v", err)
	}
	if created {
		t.Fatalf("expected match, not auto-create")
	}
	if id != "cx-1" {
		t.Fatalf("got id %q, want cx-1", id)
	}
}

func TestResolveTransactionMemoizesWithinBatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name FROM complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("cx-1", "래미안 강남"))

	r := New()
	if _, _, err := r.ResolveTransaction(context.Background(), db, "래미안 강남", "서울특별시", "강남구", "역삼동", nil); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	// second call for the same name must not re-query candidates.
	id, created, err := r.ResolveTransaction(context.Background(), db, "래미안 강남", "서울특별시", "강남구", "역삼동", nil)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if created {
		t.Fatalf("memoized resolution should not report created")
	}
	if id != "cx-1" {
		t.Fatalf("got id %q, want cx-1", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations (memoization failed to skip query): %v", err)
	}
}

func TestResolveTransactionAutoCreatesOnNoMatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name FROM complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("cx-1", "전혀 다른 단지"))
	mock.ExpectQuery("INSERT INTO complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cx-auto"))

	r := New()
	id, created, err := r.ResolveTransaction(context.Background(), db, "새로운 아파트", "서울특별시", "강남구", "역삼동", nil)
	if err != nil {
		t.Fatalf("ResolveTransaction: %v", err)
	}
	if !created {
		t.Fatalf("expected auto-create")
	}
	if id != "cx-auto" {
		t.Fatalf("got id %q, want cx-auto", id)
	}
}
