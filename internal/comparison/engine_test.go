package comparison

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

func TestDiscountRate(t *testing.T) {
	cases := []struct {
		mid, deal int
		want      float64
	}{
		{100000, 90000, 10.0},
		{100000, 105000, -5.0},
		{0, 50000, 0},
		{123456, 100000, 19.0},
	}
	for _, c := range cases {
		got := discountRate(c.mid, c.deal)
		if got != c.want {
			t.Errorf("discountRate(%d, %d) = %v, want %v", c.mid, c.deal, got, c.want)
		}
	}
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &store.Store{DB: db}, mock
}

func TestEngineRunSkipsWhenNoRecentTransaction(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT complex_id, area_sqm, price_mid FROM appraisal_prices").
		WillReturnRows(sqlmock.NewRows([]string{"complex_id", "area_sqm", "price_mid"}).
			AddRow("cx-1", 84.9, 120000))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	e := NewEngine(st)
	e.Now = func() time.Time { return time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC) }
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Updated != 0 {
		t.Fatalf("got summary %+v, want {Updated:0 Skipped:1}", summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEngineRunUpsertsWhenRecentTransactionExists(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT complex_id, area_sqm, price_mid FROM appraisal_prices").
		WillReturnRows(sqlmock.NewRows([]string{"complex_id", "area_sqm", "price_mid"}).
			AddRow("cx-1", 84.9, 120000))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT deal_price, deal_date FROM transactions").
		WillReturnRows(sqlmock.NewRows([]string{"deal_price", "deal_date"}).
			AddRow(108000, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
	mock.ExpectExec("INSERT INTO comparisons").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	e := NewEngine(st)
	e.Now = func() time.Time { return time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC) }
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 || summary.Skipped != 0 {
		t.Fatalf("got summary %+v, want {Updated:1 Skipped:0}", summary)
	}
}
