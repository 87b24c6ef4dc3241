package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/outpatient-flow/internal/config"
	"github.com/clinicware/outpatient-flow/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CheckInRatio float64
	SettleRatio  float64
	StatsRatio   float64
	ScheduleLimit int
	PostgresDSN  string
}

// scheduleKey is what a booking request selects by.
type scheduleKey struct {
	DoctorID uuid.UUID
	Date     string
	TimeSlot string
}

type DataPool struct {
	Schedules []scheduleKey

	mu           sync.RWMutex
	appointments []uuid.UUID
	records      []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) AddRecord(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.records = append(dp.records, id)
}

func (dp *DataPool) RandomRecord(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.records) == 0 {
		return uuid.Nil, false
	}
	return dp.records[rng.Intn(len(dp.records))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking OperationMetrics
	CheckIn OperationMetrics
	Settle  OperationMetrics
	Stats   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f checkin=%.2f settle=%.2f stats=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CheckInRatio, cfg.SettleRatio, cfg.StatsRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d open schedules", len(dataPool.Schedules))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		CheckInRatio:  getFloat("SIM_CHECKIN_RATIO", 0.2),
		SettleRatio:   getFloat("SIM_SETTLE_RATIO", 0.2),
		StatsRatio:    getFloat("SIM_STATS_RATIO", 0.1),
		ScheduleLimit: getInt("SIM_SCHEDULE_LIMIT", 2000),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.CheckInRatio + cfg.SettleRatio + cfg.StatsRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CheckInRatio /= total
		cfg.SettleRatio /= total
		cfg.StatsRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT doctor_id, date, time_slot
		FROM schedules
		WHERE status = 'OPEN' AND date >= now()::date
		LIMIT $1
	`, cfg.ScheduleLimit)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key scheduleKey
		var date time.Time
		if err := rows.Scan(&key.DoctorID, &date, &key.TimeSlot); err != nil {
			return nil, err
		}
		key.Date = date.Format("2006-01-02")
		dataPool.Schedules = append(dataPool.Schedules, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Schedules) == 0 {
		return nil, fmt.Errorf("no open schedules loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CheckInRatio:
				s.doCheckIn(ctx, rng)
			case r < s.config.BookingRatio+s.config.CheckInRatio+s.config.SettleRatio:
				s.doSettle(ctx, rng)
			default:
				s.doStats(ctx)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	key := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]

	// A narrow identity space makes distinct patients collide on the same
	// slot, exercising the capacity decision under contention.
	seq := rng.Intn(5000)
	reqBody := map[string]string{
		"patient_name":   fmt.Sprintf("Sim Patient %04d", seq),
		"id_card":        fmt.Sprintf("SIM%015d", seq),
		"phone":          fmt.Sprintf("1380000%04d", seq),
		"insurance_type": []string{"PUBLIC", "PRIVATE", "SELF"}[rng.Intn(3)],
		"doctor_id":      key.DoctorID.String(),
		"date":           key.Date,
		"time_slot":      key.TimeSlot,
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
			success = true
			var bookResp struct {
				AppointmentID uuid.UUID `json:"appointment_id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &bookResp) == nil && bookResp.AppointmentID != uuid.Nil {
				s.pool.AddAppointment(bookResp.AppointmentID)
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCheckIn(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	reqBody := map[string]string{"appointment_id": apptID.String()}
	body, _ := json.Marshal(reqBody)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/check-ins", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
			var ciResp struct {
				MedicalRecordID uuid.UUID `json:"medical_record_id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &ciResp) == nil && ciResp.MedicalRecordID != uuid.Nil {
				s.pool.AddRecord(ciResp.MedicalRecordID)
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.CheckIn.Record(latency, success, conflict)
}

func (s *Simulator) doSettle(ctx context.Context, rng *rand.Rand) {
	recordID, ok := s.pool.RandomRecord(rng)
	if !ok {
		return
	}

	total := float64(rng.Intn(40000)) / 100
	insurance := total * 0.7
	selfPay := total - insurance

	reqBody := map[string]any{
		"medical_record_id": recordID.String(),
		"total_amount":      fmt.Sprintf("%.2f", total),
		"insurance_amount":  fmt.Sprintf("%.2f", insurance),
		"self_pay_amount":   fmt.Sprintf("%.2f", selfPay),
		"payment_method":    []string{"CASH", "CARD", "INSURANCE"}[rng.Intn(3)],
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/settlements", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Settle.Record(latency, success, conflict)
}

func (s *Simulator) doStats(ctx context.Context) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "GET", s.config.APIBaseURL+"/stats", nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Stats.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Check-in", &s.metrics.CheckIn)
	printOperationReport("Settlement", &s.metrics.Settle)
	printOperationReport("Stats", &s.metrics.Stats)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
