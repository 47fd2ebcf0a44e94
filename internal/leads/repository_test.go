package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

var leadCols = []string{"id", "name", "email", "phone", "profession",
	"practice", "source", "engagement_score", "last_activity_at", "created_at", "inserted"}

func TestUpsertNewLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs("Dr. Jones", "jones@gp.example", "", "GP", "", "website").
		WillReturnRows(pgxmock.NewRows(leadCols).
			AddRow(int64(1), "Dr. Jones", "jones@gp.example", "", "GP", "", "website", 0, now, now, true))

	repo := NewRepository(mock)
	lead, inserted, err := repo.Upsert(context.Background(), &CreateLeadRequest{
		Name:       "Dr. Jones",
		Email:      "Jones@gp.example",
		Profession: "GP",
		Source:     "website",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !inserted {
		t.Error("inserted = false for new lead")
	}
	if lead.ID != 1 || lead.EngagementScore != 0 {
		t.Fatalf("lead = %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertExistingLeadBumpsScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(leadCols).
			AddRow(int64(1), "Dr. Jones", "jones@gp.example", "", "GP", "", "website", 5, now, now, false))

	repo := NewRepository(mock)
	lead, inserted, err := repo.Upsert(context.Background(), &CreateLeadRequest{
		Name:  "Dr. Jones",
		Email: "jones@gp.example",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if inserted {
		t.Error("inserted = true for known email")
	}
	if lead.EngagementScore != 5 {
		t.Errorf("engagement score = %d, want 5", lead.EngagementScore)
	}
}

func TestUpsertValidation(t *testing.T) {
	repo := NewRepository(nil)

	if _, _, err := repo.Upsert(context.Background(), &CreateLeadRequest{Email: "x@y.z"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
	if _, _, err := repo.Upsert(context.Background(), &CreateLeadRequest{Name: "Jo", Email: "nope"}); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("err = %v, want ErrInvalidEmail", err)
	}
}

func TestGetByEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE email`).
		WithArgs("missing@example.com").
		WillReturnRows(pgxmock.NewRows(leadCols[:10]))

	repo := NewRepository(mock)
	if _, err := repo.GetByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("err = %v, want ErrLeadNotFound", err)
	}
}
