package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/zooz/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var email, parentID sql.NullString
	err := scanner.Scan(&u.ID, &email, &u.DisplayName, &u.Role, &parentID, &u.Age, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.ParentID = parentID.String
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

const userCols = `id, email, display_name, role, parent_id, age, created_at`

// balanceExpr is the derived token balance of users.id.
const balanceExpr = `(SELECT COALESCE(SUM(t.amount), 0) FROM transactions t WHERE t.child_id = users.id)`

// Create inserts u. The password is stored as a bcrypt hash; an empty
// password leaves the account unable to log in.
func (s *UserStore) Create(ctx context.Context, u model.User, password string) (*model.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var hash string
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = string(h)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, parent_id, age, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, nullString(u.Email), u.DisplayName, u.Role, nullString(u.ParentID), u.Age, hash, orNow(u.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, u.ID)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Authenticate returns the user when email and password match, or nil.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = ?`, email,
	).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get password hash: %w", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// GetChild returns the child with its balance derived from the ledger, or
// nil if id is not a child.
func (s *UserStore) GetChild(ctx context.Context, id string) (*model.Child, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+`, `+balanceExpr+` FROM users WHERE id = ? AND role = 'child'`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var email, parentID sql.NullString
	err := scanner.Scan(&c.ID, &email, &c.DisplayName, &c.Role, &parentID, &c.Age, &c.CreatedAt, &c.TokenBalance)
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.ParentID = parentID.String
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// ListChildren returns parentID's children ordered by name.
func (s *UserStore) ListChildren(ctx context.Context, parentID string) ([]model.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+`, `+balanceExpr+` FROM users
		 WHERE role = 'child' AND parent_id = ? ORDER BY display_name ASC, id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

// GetParent returns the parent view with its children's ids, or nil.
func (s *UserStore) GetParent(ctx context.Context, id string) (*model.Parent, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil || u == nil || u.Role != model.RoleParent {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users WHERE role = 'child' AND parent_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list child ids: %w", err)
	}
	defer rows.Close()

	p := &model.Parent{User: *u, Children: []string{}}
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		p.Children = append(p.Children, cid)
	}
	return p, rows.Err()
}

// ListByRole returns every user with role, oldest first.
func (s *UserStore) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE role = ? ORDER BY created_at ASC, id ASC`, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
