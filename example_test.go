package teamauth_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/dossier-crm/teamauth"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ExampleNew builds an engine against an in-memory database and registers a team owner.
func ExampleNew() {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open("file:example-new?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		panic(err)
	}
	if err := teamauth.Migrate(ctx, db); err != nil {
		panic(err)
	}

	cfg := teamauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("example-access-secret-0123456789ab")
	cfg.JWT.RefreshSecret = []byte("example-refresh-secret-0123456789a")
	cfg.Password.Cost = 4
	cfg.Audit.Enabled = false

	engine, err := teamauth.New().WithConfig(cfg).WithDatabase(db).Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	resp, err := engine.Register(ctx, teamauth.RegisterRequest{
		Email:    "Alice@Example.com",
		Password: "Correct-horse-9",
		Name:     "Alice",
		TeamName: "Acme",
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(resp.User.Email, resp.User.Role)

	res, err := engine.ValidateAccess(ctx, resp.Tokens.AccessToken, teamauth.ModeInherit)
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Role, len(res.Permissions) > 0)
	// Output:
	// alice@example.com owner
	// owner true
}

// ExampleAsError shows how transports map engine errors to a stable code.
func ExampleAsError() {
	err := fmt.Errorf("login: %w", teamauth.ErrInvalidCredentials)

	var engineErr *teamauth.Error
	if errors.As(err, &engineErr) {
		fmt.Println(engineErr.Code())
	}
	if e, ok := teamauth.AsError(err); ok {
		fmt.Println(e.Kind() == teamauth.KindCredential)
	}
	// Output:
	// INVALID_CREDENTIALS
	// true
}
