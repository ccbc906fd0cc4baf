package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StatusAvailable marks vehicles shown in the public inventory.
const StatusAvailable = "available"

// Vehicle is a car in stock. Price is in units of 10,000 yen, mileage in km.
type Vehicle struct {
	ID           int64
	Name         string
	Model        string
	Year         int
	Price        int
	Mileage      int
	Color        string
	FuelType     string
	Transmission string
	Status       string
	Description  string
	ImagePath    string
	Features     []string
	StoreName    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Price buckets accepted by InventoryFilter.Price.
const (
	PriceUpTo100   = "100"
	PriceUpTo200   = "200"
	PriceUpTo300   = "300"
	PriceAbove300  = "301"
	mileageUnitKm  = 10000
	vehicleColumns = "id, name, model, year, price, mileage, color, fuel_type, transmission, status, description, image_path, features, store_name, created_at, updated_at"
)

// InventoryFilter narrows the public inventory. Zero values match everything.
type InventoryFilter struct {
	Price        string // one of the Price* buckets
	FuelType     string
	Transmission string
	MaxMileage   int // in units of 10,000 km
}

// where renders the filter as extra AND clauses.
func (f InventoryFilter) where() (string, []any) {
	var clauses []string
	var args []any

	switch f.Price {
	case PriceUpTo100:
		clauses = append(clauses, "price <= ?")
		args = append(args, 100)
	case PriceUpTo200:
		clauses = append(clauses, "price > ? AND price <= ?")
		args = append(args, 100, 200)
	case PriceUpTo300:
		clauses = append(clauses, "price > ? AND price <= ?")
		args = append(args, 200, 300)
	case PriceAbove300:
		clauses = append(clauses, "price > ?")
		args = append(args, 300)
	}
	if f.FuelType != "" {
		clauses = append(clauses, "fuel_type = ?")
		args = append(args, f.FuelType)
	}
	if f.Transmission != "" {
		clauses = append(clauses, "transmission = ?")
		args = append(args, f.Transmission)
	}
	if f.MaxMileage > 0 {
		clauses = append(clauses, "mileage <= ?")
		args = append(args, f.MaxMileage*mileageUnitKm)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// ParseFeatures turns newline-separated form text into a trimmed list.
func ParseFeatures(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func encodeFeatures(features []string) (any, error) {
	if len(features) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	return string(b), nil
}

// decodeFeatures never fails; malformed JSON reads as no features.
func decodeFeatures(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func scanVehicle(scanner interface{ Scan(dest ...any) error }) (*Vehicle, error) {
	var (
		v                                                    Vehicle
		model, color, fuel, trans, desc, image, store, feats sql.NullString
		year, price, mileage                                 sql.NullInt64
		created, updated                                     string
	)
	if err := scanner.Scan(
		&v.ID, &v.Name, &model, &year, &price, &mileage, &color, &fuel, &trans,
		&v.Status, &desc, &image, &feats, &store, &created, &updated,
	); err != nil {
		return nil, err
	}
	v.Model = model.String
	v.Year = int(year.Int64)
	v.Price = int(price.Int64)
	v.Mileage = int(mileage.Int64)
	v.Color = color.String
	v.FuelType = fuel.String
	v.Transmission = trans.String
	v.Description = desc.String
	v.ImagePath = image.String
	v.Features = decodeFeatures(feats)
	v.StoreName = store.String
	v.CreatedAt = parseTime(created)
	v.UpdatedAt = parseTime(updated)
	return &v, nil
}

func (s *Store) queryVehicles(ctx context.Context, query string, args ...any) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Inventory lists available vehicles matching f, newest first.
func (s *Store) Inventory(ctx context.Context, f InventoryFilter) ([]Vehicle, error) {
	where, args := f.where()
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE status = ?` + where + ` ORDER BY created_at DESC, id DESC`
	out, err := s.queryVehicles(ctx, query, append([]any{StatusAvailable}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return out, nil
}

// RecentVehicles returns the n newest available vehicles.
func (s *Store) RecentVehicles(ctx context.Context, n int) ([]Vehicle, error) {
	out, err := s.queryVehicles(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		StatusAvailable, n)
	if err != nil {
		return nil, fmt.Errorf("list recent vehicles: %w", err)
	}
	return out, nil
}

// Vehicles lists every vehicle regardless of status, newest first.
func (s *Store) Vehicles(ctx context.Context) ([]Vehicle, error) {
	out, err := s.queryVehicles(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return out, nil
}

// Vehicle fetches a vehicle by id regardless of status.
func (s *Store) Vehicle(ctx context.Context, id int64) (*Vehicle, error) {
	return s.getVehicle(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
}

// AvailableVehicle fetches a vehicle only if it is listed publicly.
func (s *Store) AvailableVehicle(ctx context.Context, id int64) (*Vehicle, error) {
	return s.getVehicle(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ? AND status = ?`, id, StatusAvailable)
}

func (s *Store) getVehicle(ctx context.Context, query string, args ...any) (*Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

// CreateVehicle inserts v and sets its ID and timestamps.
func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	if v.Status == "" {
		v.Status = StatusAvailable
	}
	feats, err := encodeFeatures(v.Features)
	if err != nil {
		return err
	}
	ts := s.timestamp()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (name, model, year, price, mileage, color, fuel_type, transmission,
            status, description, image_path, features, store_name, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Name, nullableString(v.Model), v.Year, v.Price, v.Mileage,
		nullableString(v.Color), nullableString(v.FuelType), nullableString(v.Transmission),
		v.Status, nullableString(v.Description), nullableString(v.ImagePath), feats,
		nullableString(v.StoreName), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	v.CreatedAt = parseTime(ts)
	v.UpdatedAt = v.CreatedAt
	return nil
}

// UpdateVehicle overwrites every column of the vehicle with v's values.
func (s *Store) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	if v.Status == "" {
		v.Status = StatusAvailable
	}
	feats, err := encodeFeatures(v.Features)
	if err != nil {
		return err
	}
	ts := s.timestamp()

	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles
         SET name = ?, model = ?, year = ?, price = ?, mileage = ?, color = ?, fuel_type = ?,
             transmission = ?, status = ?, description = ?, image_path = ?, features = ?,
             store_name = ?, updated_at = ?
         WHERE id = ?`,
		v.Name, nullableString(v.Model), v.Year, v.Price, v.Mileage,
		nullableString(v.Color), nullableString(v.FuelType), nullableString(v.Transmission),
		v.Status, nullableString(v.Description), nullableString(v.ImagePath), feats,
		nullableString(v.StoreName), ts, v.ID,
	)
	if err != nil {
		return fmt.Errorf("update vehicle %d: %w", v.ID, err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	v.UpdatedAt = parseTime(ts)
	return nil
}

// DeleteVehicle removes a vehicle.
func (s *Store) DeleteVehicle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %d: %w", id, err)
	}
	return affectedOne(res)
}
