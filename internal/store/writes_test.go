package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

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

func TestUpsertComplexByExternalListingID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO complexes").
		WithArgs("Sample Apt", "서울특별시", "강남구", "", "", "m123", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cx-1"))

	id, err := UpsertComplex(context.Background(), db, ComplexUpsert{
		Name:              "Sample Apt",
		Province:          "서울특별시",
		District:          "강남구",
		ExternalListingID: "m123",
	})
	if err != nil {
		t.Fatalf("UpsertComplex: %v", err)
	}
	if id != "cx-1" {
		t.Fatalf("got id %q, want cx-1", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertComplexWithoutExternalID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cx-2"))

	id, err := UpsertComplex(context.Background(), db, ComplexUpsert{
		Name:     "Auto Created",
		Province: "서울특별시",
		District: "송파구",
	})
	if err != nil {
		t.Fatalf("UpsertComplex: %v", err)
	}
	if id != "cx-2" {
		t.Fatalf("got id %q, want cx-2", id)
	}
}

func TestInsertTransactionIfNewSkipsDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	dealDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inserted, err := InsertTransactionIfNew(context.Background(), db, TransactionInsert{
		ComplexID: "cx-1",
		AreaSqm:   84.9,
		Floor:     nil,
		DealPrice: 120000,
		DealDate:  dealDate,
	})
	if err != nil {
		t.Fatalf("InsertTransactionIfNew: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate to be skipped, got inserted=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertTransactionIfNewInsertsNewFingerprint(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	dealDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	floor := 12
	inserted, err := InsertTransactionIfNew(context.Background(), db, TransactionInsert{
		ComplexID: "cx-1",
		AreaSqm:   84.9,
		Floor:     &floor,
		DealPrice: 120000,
		DealDate:  dealDate,
	})
	if err != nil {
		t.Fatalf("InsertTransactionIfNew: %v", err)
	}
	if !inserted {
		t.Fatalf("expected new fingerprint to be inserted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertListingRoundTrip(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO listings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("lst-1"))

	id, err := UpsertListing(context.Background(), db, ListingUpsert{
		ComplexID:         "cx-1",
		ExternalArticleID: "art-1",
		AreaSqm:           59.9,
		AskingPrice:       95000,
	})
	if err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	if id != "lst-1" {
		t.Fatalf("got id %q, want lst-1", id)
	}
}

// textArrayConverter passes []string arguments through unchanged, as pgx's
// stdlib driver does for text[] parameters; sqlmock's default converter
// rejects them.
type textArrayConverter struct{}

func (textArrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func TestDeactivateMissingListings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(textArrayConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectExec("UPDATE listings SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := DeactivateMissingListings(context.Background(), db, "cx-1", []string{"art-1", "art-2"}); err != nil {
		t.Fatalf("DeactivateMissingListings: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFetchComplexCandidates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name FROM complexes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("cx-1", "래미안 강남").
			AddRow("cx-2", "강남 자이"))

	out, err := FetchComplexCandidates(context.Background(), db, "서울특별시", "강남구")
	if err != nil {
		t.Fatalf("FetchComplexCandidates: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2", len(out))
	}
}
