package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/apperrors"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/emr"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"
)

var visitReasons = []string{
	"Annual checkup",
	"Follow-up visit",
	"Persistent headache",
	"Back pain",
	"Skin rash",
	"Blood test results",
	"Vaccination",
	"Seasonal allergies",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	log.Info("seed starting")

	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s := &seeder{
		faker:      gofakeit.New(0),
		log:        log,
		accounts:   accounts.NewService(accounts.NewGormRepository(db), cfg, log),
		scheduling: scheduling.NewService(scheduling.NewGormRepository(db), scheduling.NewLocalSlotLocker(), log, nil),
		emr:        emr.NewService(emr.NewGormRepository(db), emr.NewGormBlobStore(db), cfg.Uploads.MaxBytes, log, nil),
	}

	if err := s.run(ctx, envInt("SEED_DOCTORS", 5), envInt("SEED_PATIENTS", 20)); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
	log.Info("seed complete")
}

// seeder fills a fresh database through the same services the API uses, so
// every seeded row passes the usual validation.
type seeder struct {
	faker      *gofakeit.Faker
	log        *logger.Logger
	accounts   *accounts.Service
	scheduling *scheduling.Service
	emr        *emr.Service
}

// bootstrap stands in for the first admin, who has nobody to create them.
var bootstrap = models.Actor{ID: "seed", Role: models.RoleAdmin}

func (s *seeder) run(ctx context.Context, doctorCount, patientCount int) error {
	admin, err := s.createUser(ctx, models.RoleAdmin,
		getEnv("SEED_ADMIN_USERNAME", "admin"), getEnv("SEED_ADMIN_PASSWORD", "admin12345"))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	doctors := make([]*models.User, 0, doctorCount)
	for i := 0; i < doctorCount; i++ {
		d, err := s.createUser(ctx, models.RoleDoctor, s.faker.Username(), "doctor12345")
		if err != nil {
			return fmt.Errorf("seed doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	s.log.WithField("count", len(doctors)).Info("doctors seeded")

	patients := make([]*models.User, 0, patientCount)
	for i := 0; i < patientCount; i++ {
		p, err := s.createUser(ctx, models.RolePatient, s.faker.Username(), "patient12345")
		if err != nil {
			return fmt.Errorf("seed patient: %w", err)
		}
		patients = append(patients, p)
	}
	s.log.WithField("count", len(patients)).Info("patients seeded")

	if len(doctors) == 0 {
		return nil
	}

	booked := 0
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for _, p := range patients {
		doctor := doctors[s.faker.Number(0, len(doctors)-1)]
		at := day.Add(time.Duration(s.faker.Number(0, 13)) * 24 * time.Hour).
			Add(time.Duration(s.faker.Number(9, 16)) * time.Hour)
		reason := s.faker.RandomString(visitReasons)

		_, err := s.scheduling.Create(ctx, p.Actor(), scheduling.CreateInput{
			DoctorID:       doctor.ID,
			ScheduledTime:  at,
			ReasonForVisit: &reason,
		})
		switch {
		case err == nil:
			booked++
		case errors.Is(err, apperrors.ErrConflict):
			// Random slots collide now and then; skip.
		default:
			return fmt.Errorf("seed appointment: %w", err)
		}

		if s.faker.Bool() {
			if _, err := s.emr.RequestAccess(ctx, p.Actor(), "Copy of my records for "+reason); err != nil {
				return fmt.Errorf("seed emr request: %w", err)
			}
		}
	}
	s.log.WithField("count", booked).WithField("admin", admin.Username).Info("appointments seeded")
	return nil
}

// createUser returns the existing account when the username is already taken.
func (s *seeder) createUser(ctx context.Context, role models.Role, username, password string) (*models.User, error) {
	dob := s.faker.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC))
	in := accounts.RegisterInput{
		Username:    username,
		Email:       username + "@" + s.faker.DomainName(),
		Password:    password,
		FirstName:   s.faker.FirstName(),
		LastName:    s.faker.LastName(),
		Role:        role,
		DateOfBirth: &dob,
		PhoneNumber: s.faker.Phone(),
		Address:     s.faker.Street(),
	}

	u, err := s.accounts.CreateUser(ctx, bootstrap, in)
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		users, listErr := s.accounts.ListUsers(ctx, role)
		if listErr != nil {
			return nil, listErr
		}
		for i := range users {
			if users[i].Username == username {
				return &users[i], nil
			}
		}
		// Email clash with someone else; try another name.
		return s.createUser(ctx, role, s.faker.Username()+strconv.Itoa(s.faker.Number(10, 99)), password)
	}
	return u, err
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 0 {
		return def
	}
	return n
}
