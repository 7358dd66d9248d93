// Package testutil opens in-memory SQLite databases carrying the application
// schema, for repository, service and handler tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// Schema mirrors the PostgreSQL migrations using SQLite column types.
// TIMESTAMP and DATE columns make the driver return time.Time values.
const Schema = `
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  full_name TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('client','pharmacist','admin')),
  address TEXT,
  phone TEXT,
  date_of_birth DATE,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);

CREATE TABLE pharmacies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  opening_hours TEXT NOT NULL DEFAULT '',
  is_approved BOOLEAN NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  latitude REAL,
  longitude REAL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);

CREATE TABLE clients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
  is_premium BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE pharmacists (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
  license_number TEXT NOT NULL DEFAULT '',
  pharmacy_id INTEGER REFERENCES pharmacies(id)
);

CREATE TABLE admins (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL UNIQUE REFERENCES users(id)
);

CREATE TABLE medications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  generic_name TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  price REAL NOT NULL DEFAULT 0,
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL
);

CREATE TABLE inventory (
  pharmacy_id INTEGER NOT NULL REFERENCES pharmacies(id),
  medication_id INTEGER NOT NULL REFERENCES medications(id),
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  updated_at TIMESTAMP NOT NULL,
  PRIMARY KEY (pharmacy_id, medication_id)
);

CREATE TABLE reservations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  client_id INTEGER NOT NULL REFERENCES clients(id),
  pharmacy_id INTEGER NOT NULL REFERENCES pharmacies(id),
  medication_id INTEGER NOT NULL REFERENCES medications(id),
  patient_name TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount REAL NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);

CREATE TABLE reviews (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  client_id INTEGER NOT NULL REFERENCES clients(id),
  pharmacy_id INTEGER NOT NULL REFERENCES pharmacies(id),
  rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
  comment TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL
);

CREATE TABLE notifications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL REFERENCES users(id),
  message TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT '',
  is_read BOOLEAN NOT NULL DEFAULT 0,
  sent_at TIMESTAMP NOT NULL
);
`

// OpenDB returns an empty in-memory database with the schema applied.
// A single connection keeps every query on the same in-memory instance.
func OpenDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:?_time_format=sqlite")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

// Fixtures is the catalog seeded by Seed
type Fixtures struct {
	Pharmacies  []int64
	Medications []int64
}

// Seed inserts two approved pharmacies and four medications with stock at
// the first pharmacy. Ids start at 1 so tests can refer to them directly.
func Seed(t testing.TB, db *sqlx.DB) Fixtures {
	t.Helper()
	now := time.Now().UTC()
	ctx := context.Background()

	var fx Fixtures
	for _, name := range []string{"Central Pharmacy", "Riverside Pharmacy"} {
		var id int64
		err := db.GetContext(ctx, &id, `
			INSERT INTO pharmacies (name, address, phone, opening_hours, is_approved, status, created_at, updated_at)
			VALUES (?, '1 Main St', '555-0100', '08:00-20:00', 1, 'approved', ?, ?) RETURNING id`,
			name, now, now)
		if err != nil {
			t.Fatalf("seed pharmacy: %v", err)
		}
		fx.Pharmacies = append(fx.Pharmacies, id)
	}

	meds := []domain.Medication{
		{Name: "Paracetamol", GenericName: "acetaminophen", Category: "analgesic", Price: 2.5},
		{Name: "Ibuprofen", GenericName: "ibuprofen", Category: "analgesic", Price: 3.75},
		{Name: "Amoxicillin", GenericName: "amoxicillin", Category: "antibiotic", Price: 8},
		{Name: "Cetirizine", GenericName: "cetirizine", Category: "antihistamine", Price: 4.2},
	}
	for _, m := range meds {
		var id int64
		err := db.GetContext(ctx, &id, `
			INSERT INTO medications (name, generic_name, category, price, description, created_at)
			VALUES (?, ?, ?, ?, '', ?) RETURNING id`,
			m.Name, m.GenericName, m.Category, m.Price, now)
		if err != nil {
			t.Fatalf("seed medication: %v", err)
		}
		fx.Medications = append(fx.Medications, id)
	}

	for i, qty := range []int{10, 0, 5, 20} {
		_, err := db.ExecContext(ctx, `
			INSERT INTO inventory (pharmacy_id, medication_id, quantity, updated_at) VALUES (?, ?, ?, ?)`,
			fx.Pharmacies[0], fx.Medications[i], qty, now)
		if err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}
	return fx
}

// CreateClient inserts a client user and returns its user id and client id
func CreateClient(t testing.TB, db *sqlx.DB, email string) (string, int64) {
	t.Helper()
	return createUser(t, db, email, domain.RoleClient)
}

// CreatePharmacist inserts a pharmacist linked to pharmacyID (0 for none)
func CreatePharmacist(t testing.TB, db *sqlx.DB, email string, pharmacyID int64) string {
	t.Helper()
	userID, profileID := createUser(t, db, email, domain.RolePharmacist)
	if pharmacyID > 0 {
		if _, err := db.Exec(`UPDATE pharmacists SET pharmacy_id = ? WHERE id = ?`, pharmacyID, profileID); err != nil {
			t.Fatalf("link pharmacist: %v", err)
		}
	}
	return userID
}

func createUser(t testing.TB, db *sqlx.DB, email string, role domain.Role) (string, int64) {
	t.Helper()
	now := time.Now().UTC()
	userID := "u-" + email

	_, err := db.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES (?, ?, 'x', ?, ?, ?, ?)`, userID, email, email, role, now, now)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	var table string
	switch role {
	case domain.RolePharmacist:
		table = "pharmacists"
	case domain.RoleAdmin:
		table = "admins"
	default:
		table = "clients"
	}
	var id int64
	if err := db.Get(&id, `INSERT INTO `+table+` (user_id) VALUES (?) RETURNING id`, userID); err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
	return userID, id
}
