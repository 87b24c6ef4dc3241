package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/outpatient-flow/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	schemaPath := flag.String("schema", "migrations/schema.sql", "path to schema DDL, empty to skip")
	days := flag.Int("days", 7, "days of schedules to create per doctor")
	patients := flag.Int("patients", 2000, "number of patients to create")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if *schemaPath != "" {
		if err := applySchema(context.Background(), pool, *schemaPath); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDepartmentsAndDoctors(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed departments and doctors: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, doctorIDs, *days); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedPatients(context.Background(), pool, *patients); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, path string) error {
	ddl, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, string(ddl)); err != nil {
		return err
	}
	log.Printf("schema applied from %s", path)
	return nil
}

func seedDepartmentsAndDoctors(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	departments := []struct {
		name string
		code string
	}{
		{"Internal Medicine", "IM"},
		{"Surgery", "SUR"},
		{"Pediatrics", "PED"},
		{"Dermatology", "DERM"},
		{"Cardiology", "CARD"},
		{"Orthopedics", "ORTH"},
	}
	titles := []string{"RESIDENT", "ATTENDING", "CHIEF"}

	log.Printf("seeding %d departments with doctors", len(departments))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doctorIDs []uuid.UUID
	for i, dep := range departments {
		depID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO departments (id, name, code, location, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (name) DO NOTHING
		`, depID, dep.name, dep.code, fmt.Sprintf("Building %c", 'A'+i))
		if err != nil {
			return nil, err
		}

		for j := 0; j < 4; j++ {
			docID := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, department_id, name, title, phone, slots_per_day_hint)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, docID, depID, gofakeit.Name(), titles[gofakeit.Number(0, len(titles)-1)], gofakeit.Phone(), 20)
			if err != nil {
				return nil, err
			}
			doctorIDs = append(doctorIDs, docID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("departments and %d doctors seeded", len(doctorIDs))
	return doctorIDs, nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, days int) error {
	log.Printf("seeding %d days of schedules for %d doctors", days, len(doctorIDs))

	slots := []string{"AM", "PM", "EV"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().Truncate(24 * time.Hour)
	for _, docID := range doctorIDs {
		for d := 0; d < days; d++ {
			date := today.AddDate(0, 0, d)
			for _, slot := range slots {
				_, err := tx.Exec(ctx, `
					INSERT INTO schedules (id, doctor_id, date, time_slot, room_no, capacity, status)
					VALUES ($1, $2, $3, $4, $5, $6, 'OPEN')
					ON CONFLICT (doctor_id, date, time_slot) DO NOTHING
				`, uuid.New(), docID, date, slot, fmt.Sprintf("R%03d", gofakeit.Number(1, 400)), gofakeit.Number(5, 20))
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500
	insurance := []string{"PUBLIC", "PRIVATE", "SELF"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, gender, id_card, phone, insurance_type, address, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now())
				ON CONFLICT (id_card) DO NOTHING
			`, uuid.New(), gofakeit.Name(), gofakeit.Gender(),
				fmt.Sprintf("%018d", gofakeit.Number(1, 999999999)),
				gofakeit.Phone(), insurance[gofakeit.Number(0, len(insurance)-1)], gofakeit.Address().Address)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
