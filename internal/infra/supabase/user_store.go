package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

type userRow struct {
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
	}
}

// GetUserByEmail looks a user up by exact email match.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	return c.getUser(ctx, fmt.Sprintf("pos_users?email=eq.%s&limit=1", url.QueryEscape(email)), email)
}

// GetUserByID looks a user up by id.
func (c *Client) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	return c.getUser(ctx, fmt.Sprintf("pos_users?id=eq.%s&limit=1", url.QueryEscape(id)), id)
}

func (c *Client) getUser(ctx context.Context, path, ref string) (*domain.User, error) {
	var user *domain.User
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[userRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "user", ID: ref}
		}
		u := rows[0].toDomain()
		user = &u
		return nil
	})
	if err != nil {
		if nf, ok := asNotFound(err); ok {
			return nil, nf
		}
		return nil, &domain.ErrExternalService{Service: "supabase/pos_users", Err: err}
	}
	return user, nil
}

// CreateUser inserts a new account row and returns it with the generated id.
func (c *Client) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	row := userRow{
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		IsActive:     true,
	}
	body, err := c.doPost(ctx, "pos_users", []userRow{row})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/pos_users", Err: err}
	}
	rows, err := decodeRows[userRow](body)
	if err != nil || len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/pos_users", Err: fmt.Errorf("empty insert response")}
	}
	created := rows[0].toDomain()
	return &created, nil
}
