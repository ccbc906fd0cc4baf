package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultIcon is used when an announcement has no icon class.
const DefaultIcon = "fas fa-info-circle"

// Announcement is a news item on the home page.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IconClass string    `json:"icon_class"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrMissingFields is returned when title or content is empty.
var ErrMissingFields = errors.New("title and content are required")

func (a *Announcement) normalize() error {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return ErrMissingFields
	}
	if strings.TrimSpace(a.IconClass) == "" {
		a.IconClass = DefaultIcon
	}
	return nil
}

func scanAnnouncement(scanner interface{ Scan(dest ...any) error }) (*Announcement, error) {
	var a Announcement
	var created, updated string
	if err := scanner.Scan(&a.ID, &a.Title, &a.Content, &a.IconClass, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

// Announcements returns announcements newest first. A negative limit returns
// all of them.
func (s *Store) Announcements(ctx context.Context, limit, offset int) ([]Announcement, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, icon_class, created_at, updated_at FROM announcements
         ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	out := []Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Announcement fetches one announcement.
func (s *Store) Announcement(ctx context.Context, id int64) (*Announcement, error) {
	a, err := scanAnnouncement(s.db.QueryRowContext(ctx,
		`SELECT id, title, content, icon_class, created_at, updated_at FROM announcements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	return a, nil
}

// CreateAnnouncement inserts a and sets its ID and timestamps.
func (s *Store) CreateAnnouncement(ctx context.Context, a *Announcement) error {
	if err := a.normalize(); err != nil {
		return err
	}
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements (title, content, icon_class, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		a.Title, a.Content, a.IconClass, ts, ts)
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.CreatedAt = parseTime(ts)
	a.UpdatedAt = a.CreatedAt
	return nil
}

// UpdateAnnouncement overwrites title, content and icon.
func (s *Store) UpdateAnnouncement(ctx context.Context, a *Announcement) error {
	if err := a.normalize(); err != nil {
		return err
	}
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET title = ?, content = ?, icon_class = ?, updated_at = ? WHERE id = ?`,
		a.Title, a.Content, a.IconClass, ts, a.ID)
	if err != nil {
		return fmt.Errorf("update announcement %d: %w", a.ID, err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	a.UpdatedAt = parseTime(ts)
	return nil
}

// DeleteAnnouncement removes an announcement.
func (s *Store) DeleteAnnouncement(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete announcement %d: %w", id, err)
	}
	return affectedOne(res)
}
